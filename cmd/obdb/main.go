// obdb is the offline bulk-load and inspection utility for the gateway's
// account/auth record store. It is never run against a live server.
package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/orderentry/obgate/pkg/storage"
)

type options struct {
	DB           string `long:"db" description:"record store root" default:"data/obdb"`
	LoadAccounts string `long:"load-accounts" description:"JSON input file containing account data"`
	LoadAuth     string `long:"load-auth" description:"JSON input file containing auth data"`
	Keys         bool   `long:"keys" description:"dump all keys"`
	Dump         bool   `long:"dump" description:"dump all keys and values"`
	Clear        bool   `long:"clear" description:"delete all data before loading"`
}

func run() error {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		return err
	}

	store, err := storage.Open(opts.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.Clear {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}

	if opts.LoadAccounts != "" {
		n, err := store.LoadPrefixedFile(opts.LoadAccounts, storage.PrefixAccount)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		fmt.Printf("loaded %d account records\n", n)
	}
	if opts.LoadAuth != "" {
		n, err := store.LoadPrefixedFile(opts.LoadAuth, storage.PrefixAuth)
		if err != nil {
			return fmt.Errorf("load auth: %w", err)
		}
		fmt.Printf("loaded %d auth records\n", n)
	}

	if opts.Keys {
		if err := store.Each(func(key, _ string) error {
			fmt.Println(key)
			return nil
		}); err != nil {
			return err
		}
	}
	if opts.Dump {
		if err := store.Each(func(key, value string) error {
			fmt.Printf("%s: %s\n", key, value)
			return nil
		}); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
