package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/alan14500171/stock/app"
	"github.com/alan14500171/stock/config"
	"github.com/alan14500171/stock/guard"
	"github.com/alan14500171/stock/log"
)

const flagConfig = "config"

//nolint:gochecknoglobals
var (
	build   = "n/a"
	version = "n/a"
)

func main() {
	config.App.Build = build
	config.App.Version = version

	newApp := cli.NewApp()
	newApp.Usage = "A " + config.ServiceName + " back-office client"
	newApp.Version = config.App.Version + ":" + config.App.Build
	newApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  flagConfig + ", c",
			Value: "./config.yaml",
		},
	}
	newApp.Commands = []cli.Command{
		{
			Name:  "login",
			Usage: "authenticate against the back office",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "username, u"},
				cli.StringFlag{Name: "password, p"},
			},
			Action: loginAction,
		},
		{
			Name:   "logout",
			Usage:  "drop the current session",
			Action: logoutAction,
		},
		{
			Name:   "whoami",
			Usage:  "show the current session",
			Action: whoamiAction,
		},
		{
			Name:   "grants",
			Usage:  "show the grants of the current session",
			Action: grantsAction,
		},
		{
			Name:      "open",
			Usage:     "navigate to a view path",
			ArgsUsage: "<path>",
			Action:    openAction,
		},
		{
			Name:   "routes",
			Usage:  "list the known view routes",
			Action: routesAction,
		},
	}

	if err := newApp.Run(os.Args); err != nil {
		fmt.Println("failed run newApp:", err.Error())
		os.Exit(1)
	}
}

func initApp(c *cli.Context) *app.App {
	cfg := config.ReadConfig(c.GlobalString(flagConfig))
	logger := log.New(cfg.Log)

	client, err := app.New(logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to init the client")
	}
	return client
}

func loginAction(c *cli.Context) error {
	client := initApp(c)
	defer client.Close()

	username := c.String("username")
	password := c.String("password")
	if username == "" || password == "" {
		return cli.NewExitError("both --username and --password are required", 1)
	}

	user, err := client.Login(context.Background(), username, password)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	fmt.Printf("logged in as %s\n", user.Username)
	return nil
}

func logoutAction(c *cli.Context) error {
	client := initApp(c)
	defer client.Close()

	client.Logout(context.Background())
	fmt.Println("logged out")
	return nil
}

func whoamiAction(c *cli.Context) error {
	client := initApp(c)
	defer client.Close()

	sess := client.Sessions.Current()
	if !sess.Authenticated {
		fmt.Println("not logged in")
		return nil
	}

	fmt.Printf("username: %s\n", sess.User.Username)
	if sess.User.DisplayName != "" {
		fmt.Printf("display name: %s\n", sess.User.DisplayName)
	}
	fmt.Printf("admin: %v\n", client.Sessions.IsAdmin())
	return nil
}

func grantsAction(c *cli.Context) error {
	client := initApp(c)
	defer client.Close()

	sess := client.Sessions.Current()
	if !sess.Authenticated {
		return cli.NewExitError("not logged in", 1)
	}

	if err := client.Grants.Load(context.Background()); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if client.Grants.Degraded() {
		fmt.Println("warning: permission load failed, showing the default empty grant set")
	}
	fmt.Printf("permissions: %s\n", strings.Join(client.Grants.Permissions(), ", "))
	fmt.Printf("roles: %s\n", strings.Join(client.Grants.Roles(), ", "))
	return nil
}

func openAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("a view path is required, see `routes`", 1)
	}

	client := initApp(c)
	defer client.Close()

	decision := client.Open(context.Background(), path)
	if decision.Allowed() {
		fmt.Printf("entered %q (%s)\n", decision.Route.Title, decision.Route.Path)
		return nil
	}

	fmt.Printf("redirected to %s\n", decision.Target())
	return nil
}

func routesAction(c *cli.Context) error {
	for _, route := range guard.DefaultRoutes().Routes() {
		access := "public"
		if route.RequiresAuth {
			access = "auth"
			if route.Permission != "" {
				access = route.Permission
			}
		}
		fmt.Printf("%-28s %-20s %s\n", route.Path, route.Name, access)
	}
	return nil
}
