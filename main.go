package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/app"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/config"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/secret"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cliApp := &cli.App{
		Name:     "canvaskit",
		Usage:    "scan design pages into templates and generate pages from them",
		Version:  version,
		Metadata: map[string]any{},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file (default: ~/.config/canvaskit/config.yaml)", EnvVars: []string{config.EnvConfigFile}},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if lvl := c.String("log-level"); lvl != "" {
				cfg.Logging.Level = lvl
			}
			log.Init(cfg.Logging)
			c.App.Metadata["config"] = cfg
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve-mcp",
				Usage:  "run the MCP server on stdin/stdout",
				Action: serveMCPAction,
			},
			{
				Name:   "scan",
				Usage:  "print the page configuration of the active page",
				Action: scanAction,
			},
			{
				Name:  "templates",
				Usage: "manage saved templates",
				Subcommands: []*cli.Command{
					{Name: "list", Usage: "list templates", Action: listTemplatesAction},
					{Name: "show", Usage: "print a template", ArgsUsage: "ID", Action: showTemplateAction},
					{Name: "delete", Usage: "delete a template", ArgsUsage: "ID", Action: deleteTemplateAction},
					{Name: "import", Usage: "import template JSON files", ArgsUsage: "FILE...", Action: importTemplatesAction},
					{
						Name:      "export",
						Usage:     "write a template as JSON",
						ArgsUsage: "ID",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default: stdout)"},
						},
						Action: exportTemplateAction,
					},
				},
			},
			{
				Name:  "generate",
				Usage: "create a page from a template",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "template ID", Required: true},
					&cli.StringFlag{Name: "values", Usage: "JSON file with token values"},
					&cli.StringFlag{Name: "session", Usage: "generation session", Value: "default"},
				},
				Action: generateAction,
			},
			{
				Name:  "token",
				Usage: "manage the template backend token in the OS keyring",
				Subcommands: []*cli.Command{
					{Name: "set", Usage: "store the token (read from stdin)", Action: tokenSetAction},
					{Name: "clear", Usage: "remove the token", Action: tokenClearAction},
				},
			},
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp opens the app for the duration of fn.
func withApp(c *cli.Context, fn func(*app.App) error) error {
	cfg, _ := c.App.Metadata["config"].(config.Config)
	a, err := app.Open(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireArg(c *cli.Context, name string) (string, error) {
	v := strings.TrimSpace(c.Args().First())
	if v == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return v, nil
}

// ── Actions ────────────────────────────────────────────────

func serveMCPAction(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		return a.ServeMCP(c.Context, version)
	})
}

func scanAction(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		cfg, err := a.Templates.ScanActivePage(c.Context)
		if err != nil {
			return err
		}
		return printJSON(cfg)
	})
}

func listTemplatesAction(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		templates, err := a.Templates.ListTemplates(c.Context)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tELEMENTS\tTOKENS\tUPDATED")
		for _, t := range templates {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", t.ID, t.Name, len(t.PageConfig.Elements),
				strings.Join(t.PageConfig.TokenNames(), ","), t.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	})
}

func showTemplateAction(c *cli.Context) error {
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}
	return withApp(c, func(a *app.App) error {
		t, err := a.Templates.GetTemplate(c.Context, id)
		if err != nil {
			return err
		}
		return printJSON(t)
	})
}

func deleteTemplateAction(c *cli.Context) error {
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}
	return withApp(c, func(a *app.App) error {
		if err := a.Templates.DeleteTemplate(c.Context, id); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", id)
		return nil
	})
}

func importTemplatesAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("missing FILE argument")
	}
	return withApp(c, func(a *app.App) error {
		var errs []error
		for _, path := range c.Args().Slice() {
			t, err := a.Templates.ImportFile(c.Context, path)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			fmt.Printf("imported %s (%s)\n", t.ID, t.Name)
		}
		return errors.Join(errs...)
	})
}

func exportTemplateAction(c *cli.Context) error {
	id, err := requireArg(c, "ID")
	if err != nil {
		return err
	}
	return withApp(c, func(a *app.App) error {
		data, err := a.Templates.ExportTemplate(c.Context, id)
		if err != nil {
			return err
		}
		if out := c.String("out"); out != "" {
			return os.WriteFile(out, append(data, '\n'), 0o644)
		}
		_, err = fmt.Println(string(data))
		return err
	})
}

func generateAction(c *cli.Context) error {
	values := domain.TokenValues{}
	if path := c.String("values"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return withApp(c, func(a *app.App) error {
		report, err := a.Templates.Generate(c.Context, c.String("session"), c.String("template"), values)
		if report != nil {
			if perr := printJSON(report); perr != nil {
				return perr
			}
		}
		return err
	})
}

func tokenSetAction(c *cli.Context) error {
	fmt.Fprint(os.Stderr, "token: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return errors.New("empty token")
	}
	if err := secret.NewKeyringStore().Set(secret.BackendTokenKey, []byte(token)); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "token stored")
	return nil
}

func tokenClearAction(c *cli.Context) error {
	if err := secret.NewKeyringStore().Delete(secret.BackendTokenKey); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "token removed")
	return nil
}
