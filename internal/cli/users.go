package cli

import (
	"github.com/spf13/cobra"

	"github.com/TwigBush/deadbolt-go/internal/config"
	"github.com/TwigBush/deadbolt-go/internal/subjects"
)

type userView struct {
	Identifier  string   `json:"identifier" yaml:"identifier"`
	Roles       []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

func cmdUsers() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the demo users",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			store, err := subjects.LoadStore(cfg.Subjects.File)
			if err != nil {
				return err
			}
			out := make([]userView, 0)
			for _, id := range store.Identifiers() {
				s, _ := store.Lookup(id)
				out = append(out, userView{
					Identifier:  s.Identifier(),
					Roles:       s.RoleNames(),
					Permissions: s.PermissionValues(),
				})
			}
			return printOut(cmd.OutOrStdout(), out)
		},
	}
}
