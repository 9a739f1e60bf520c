package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TwigBush/deadbolt-go/internal/config"
	"github.com/TwigBush/deadbolt-go/internal/subjects"
)

func cmdToken() *cobra.Command {
	var key string

	c := &cobra.Command{
		Use:   "token <user>",
		Short: "Issue a signed bearer token for a demo user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if key == "" {
				key = cfg.Subjects.TokenKey
			}
			if key == "" {
				return errors.New("no signing key: pass --key or set subjects.token_key")
			}
			store, err := subjects.LoadStore(cfg.Subjects.File)
			if err != nil {
				return err
			}
			s, ok := store.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown user %q", args[0])
			}
			tok, err := subjects.NewTokenSource([]byte(key), store).Issue(s)
			if err != nil {
				return err
			}
			return printOut(cmd.OutOrStdout(), map[string]string{"user": s.Identifier(), "token": tok})
		},
	}
	c.Flags().StringVar(&key, "key", "", "HMAC signing key (defaults to subjects.token_key)")
	return c
}
