package tenantcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/notification-service/domains/tenants/be/service"
	usersservice "github.com/zenGate-Global/notification-service/domains/users/be/service"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

// Lifecycle is the part of the tenant service the commands drive.
type Lifecycle interface {
	Onboard(ctx context.Context, input service.OnboardInput) (service.Tenant, error)
	Get(ctx context.Context, identifier string) (service.Tenant, error)
	List(ctx context.Context, opts service.ListOptions) (service.ListResult, error)
	Activate(ctx context.Context, identifier string) (service.Tenant, error)
	Deactivate(ctx context.Context, identifier string) (service.Tenant, error)
	Rename(ctx context.Context, identifier, name string) (service.Tenant, error)
	RecreateSchema(ctx context.Context, identifier string) (service.SchemaStatus, error)
	Delete(ctx context.Context, identifier string, dropSchema bool) error
	VerifySchema(ctx context.Context, identifier string) (service.SchemaStatus, error)
}

// Services is what an Opener hands to a command.
type Services struct {
	Tenants Lifecycle
	Users   usersservice.Service
	Close   func()
}

// Opener connects the services for one command run.
type Opener func(ctx context.Context) (Services, error)

var errConfirmationRequired = errors.New("destructive operation requires --yes")

// Command groups tenant administration.
func Command(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant administration (onboard, activate, recreate schema)",
	}

	cmd.AddCommand(
		onboardCommand(open),
		listCommand(open),
		getCommand(open),
		statusCommand(open, "activate", "Allow requests for a tenant", Lifecycle.Activate),
		statusCommand(open, "deactivate", "Reject requests for a tenant; data is kept", Lifecycle.Deactivate),
		renameCommand(open),
		recreateSchemaCommand(open),
		verifyCommand(open),
		deleteCommand(open),
	)
	return cmd
}

// run opens the services, calls fn and always closes them.
func run(cmd *cobra.Command, open Opener, fn func(ctx context.Context, svc Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := open(ctx)
	if err != nil {
		return err
	}
	if svc.Close != nil {
		defer svc.Close()
	}
	return fn(ctx, svc)
}

func onboardCommand(open Opener) *cobra.Command {
	var identifier, name, adminEmail, adminName string

	c := &cobra.Command{
		Use:   "onboard",
		Short: "Register a tenant and provision its schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (adminEmail == "") != (adminName == "") {
				return errors.New("--admin-email and --admin-full-name must be given together")
			}
			return run(cmd, open, func(ctx context.Context, svc Services) error {
				t, err := svc.Tenants.Onboard(ctx, service.OnboardInput{Identifier: identifier, Name: name})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s onboarded (schema %s).\n", t.Identifier, t.SchemaName)

				if adminEmail == "" {
					return nil
				}
				err = tenant.Scope(ctx, "cli tenant onboard", t.Identifier, func(ctx context.Context) error {
					_, err := svc.Users.Create(ctx, usersservice.CreateInput{Email: adminEmail, FullName: adminName})
					return err
				})
				if err != nil {
					return fmt.Errorf("seed admin user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Admin user %s created in %s.\n", adminEmail, t.SchemaName)
				return nil
			})
		},
	}

	c.Flags().StringVar(&identifier, "identifier", "", "Tenant identifier (lowercase letters, digits, underscores)")
	c.Flags().StringVar(&name, "name", "", "Tenant display name")
	c.Flags().StringVar(&adminEmail, "admin-email", "", "Optional admin user to create in the new schema")
	c.Flags().StringVar(&adminName, "admin-full-name", "", "Full name of the admin user")
	_ = c.MarkFlagRequired("identifier")
	_ = c.MarkFlagRequired("name")
	return c
}

func listCommand(open Opener) *cobra.Command {
	var status string

	c := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := service.ListOptions{}
			switch strings.ToLower(status) {
			case "":
			case "active":
				s := service.StatusActive
				opts.Status = &s
			case "inactive":
				s := service.StatusInactive
				opts.Status = &s
			default:
				return fmt.Errorf("unknown status %q (use active or inactive)", status)
			}

			return run(cmd, open, func(ctx context.Context, svc Services) error {
				res, err := svc.Tenants.List(ctx, opts)
				if err != nil {
					return err
				}
				return printTenants(cmd.OutOrStdout(), res.Tenants)
			})
		},
	}
	c.Flags().StringVar(&status, "status", "", "Filter by status: active or inactive")
	return c
}

func getCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get <identifier>",
		Short: "Show a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, svc Services) error {
				t, err := svc.Tenants.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printTenants(cmd.OutOrStdout(), []service.Tenant{t})
			})
		},
	}
}

func statusCommand(open Opener, use, short string, fn func(Lifecycle, context.Context, string) (service.Tenant, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <identifier>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, svc Services) error {
				t, err := fn(svc.Tenants, ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s is %s.\n", t.Identifier, t.Status)
				return nil
			})
		},
	}
}

func renameCommand(open Opener) *cobra.Command {
	var name string
	c := &cobra.Command{
		Use:   "rename <identifier>",
		Short: "Change a tenant's display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, svc Services) error {
				t, err := svc.Tenants.Rename(ctx, args[0], name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tenant %s renamed to %q.\n", t.Identifier, t.Name)
				return nil
			})
		},
	}
	c.Flags().StringVar(&name, "name", "", "New display name")
	_ = c.MarkFlagRequired("name")
	return c
}

func recreateSchemaCommand(open Opener) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "recreate-schema <identifier>",
		Short: "Drop and re-provision a tenant schema. All tenant data is lost.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errConfirmationRequired
			}
			return run(cmd, open, func(ctx context.Context, svc Services) error {
				status, err := svc.Tenants.RecreateSchema(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema %s recreated (%d/%d tables).\n",
					status.SchemaName, status.TablesPresent, status.TablesExpected)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&yes, "yes", false, "Confirm that all data in the schema may be destroyed")
	return c
}

func verifyCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <identifier>",
		Short: "Compare a tenant schema with the template; exits non-zero when tables are missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, func(ctx context.Context, svc Services) error {
				status, err := svc.Tenants.VerifySchema(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Schema %s: exists=%t tables=%d/%d\n",
					status.SchemaName, status.Exists, status.TablesPresent, status.TablesExpected)
				if !status.Ready() {
					if len(status.MissingTables) > 0 {
						fmt.Fprintf(out, "Missing tables: %s\n", strings.Join(status.MissingTables, ", "))
					}
					return fmt.Errorf("schema %s is not ready", status.SchemaName)
				}
				return nil
			})
		},
	}
}

func deleteCommand(open Opener) *cobra.Command {
	var yes, dropSchema bool
	c := &cobra.Command{
		Use:   "delete <identifier>",
		Short: "Remove a tenant from the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errConfirmationRequired
			}
			return run(cmd, open, func(ctx context.Context, svc Services) error {
				if err := svc.Tenants.Delete(ctx, args[0], dropSchema); err != nil {
					return err
				}
				msg := "Tenant %s deleted; schema kept.\n"
				if dropSchema {
					msg = "Tenant %s deleted with its schema.\n"
				}
				fmt.Fprintf(cmd.OutOrStdout(), msg, args[0])
				return nil
			})
		},
	}
	c.Flags().BoolVar(&dropSchema, "drop-schema", false, "Also drop the tenant schema and its data")
	c.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return c
}

func printTenants(w io.Writer, tenants []service.Tenant) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tNAME\tSCHEMA\tSTATUS\tCREATED")
	for _, t := range tenants {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.Identifier, t.Name, t.SchemaName, t.Status, t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return tw.Flush()
}
