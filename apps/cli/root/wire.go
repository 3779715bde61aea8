package root

import (
	"context"

	"github.com/zenGate-Global/notification-service/apps/cli/cmd/cliapp"
	migratecmd "github.com/zenGate-Global/notification-service/apps/cli/cmd/migrate"
	tenantcmd "github.com/zenGate-Global/notification-service/apps/cli/cmd/tenant"
)

func init() {
	Root().AddCommand(migratecmd.Command(&options))
	Root().AddCommand(tenantcmd.Command(openServices))
}

func openServices(ctx context.Context) (tenantcmd.Services, error) {
	app, err := cliapp.Open(ctx, options)
	if err != nil {
		return tenantcmd.Services{}, err
	}
	return tenantcmd.Services{Tenants: app.Tenants, Users: app.Users, Close: app.Close}, nil
}
