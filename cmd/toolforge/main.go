package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/toolforge/toolforge-go/db"
	"github.com/toolforge/toolforge-go/internal/application"
	"github.com/toolforge/toolforge-go/internal/config"
	"github.com/toolforge/toolforge-go/internal/logging"
	"github.com/toolforge/toolforge-go/privatefile"
	"github.com/toolforge/toolforge-go/useragent"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "toolforge: %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	app *kingpin.Application

	configFile  *string
	tool        *string
	toolURL     *string
	toolEmail   *string
	logLevel    *string
	metadataURL *string

	dbname       *kingpin.CmdClause
	dbnameDomain *string

	replica          *kingpin.CmdClause
	replicaDB        *string
	replicaCluster   *string
	replicaExtension *string
	replicaHost      *string
	replicaConnect   *bool

	toolsdb        *kingpin.CmdClause
	toolsdbDB      *string
	toolsdbHost    *string
	toolsdbConnect *bool

	userAgent      *kingpin.CmdClause
	userAgentTool  *string
	userAgentURL   *string
	userAgentEmail *string

	checkFile     *kingpin.CmdClause
	checkFilePath *string
}

func newCLI() *cli {
	c := &cli{app: kingpin.New("toolforge", "Helpers for tools running on Wikimedia Toolforge")}

	c.configFile = c.app.Flag("config", "Path to YAML configuration file").String()
	c.tool = c.app.Flag("tool", "Tool name used for the User-Agent").String()
	c.toolURL = c.app.Flag("tool-url", "Public URL of the tool used for the User-Agent").String()
	c.toolEmail = c.app.Flag("tool-email", "Contact email of the tool used for the User-Agent").String()
	c.logLevel = c.app.Flag("log-level", "Log level (debug, info, warn, error)").String()
	c.metadataURL = c.app.Flag("metadata-url", "MediaWiki API serving the site matrix").String()

	c.dbname = c.app.Command("dbname", "Print the database name of a wiki domain or URL")
	c.dbnameDomain = c.dbname.Arg("domain", "Wiki domain or URL, e.g. en.wikipedia.org").Required().String()

	c.replica = c.app.Command("replica", "Resolve (and optionally connect to) a wiki replica database")
	c.replicaDB = c.replica.Arg("dbname", "Wiki database name, e.g. enwiki or enwiki_p").Required().String()
	c.replicaCluster = c.replica.Flag("cluster", "Replica cluster (web or analytics)").Default(string(db.Web)).String()
	c.replicaExtension = c.replica.Flag("extension", "Extension qualifier prefixed to the host").String()
	c.replicaHost = c.replica.Flag("host", "Explicit host override").String()
	c.replicaConnect = c.replica.Flag("connect", "Open a connection and ping it").Bool()

	c.toolsdb = c.app.Command("toolsdb", "Resolve (and optionally connect to) a ToolsDB database")
	c.toolsdbDB = c.toolsdb.Arg("dbname", "Tool database name, e.g. s12345__foo").Required().String()
	c.toolsdbHost = c.toolsdb.Flag("host", "Explicit host override").String()
	c.toolsdbConnect = c.toolsdb.Flag("connect", "Open a connection and ping it").Bool()

	c.userAgent = c.app.Command("user-agent", "Print the policy-compliant User-Agent for a tool")
	c.userAgentTool = c.userAgent.Arg("tool", "Tool name").Required().String()
	c.userAgentURL = c.userAgent.Flag("url", "Public URL of the tool").String()
	c.userAgentEmail = c.userAgent.Flag("email", "Contact email of the tool").String()

	c.checkFile = c.app.Command("check-file", "Load a private YAML file, refusing world-readable ones")
	c.checkFilePath = c.checkFile.Arg("path", "Path to the YAML file").Required().ExistingFile()

	return c
}

func run(ctx context.Context, args []string, out io.Writer) error {
	c := newCLI()
	command, err := c.app.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(&config.CLIOverrides{
		ConfigFile:  *c.configFile,
		MetadataURL: c.metadataURL,
		Tool:        c.tool,
		ToolURL:     c.toolURL,
		ToolEmail:   c.toolEmail,
		LogLevel:    c.logLevel,
	})
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app := application.New(cfg, logger)
	logger.Debug("running command", zap.String("command", command))

	switch command {
	case c.dbname.FullCommand():
		name, err := app.Client().DBName(ctx, *c.dbnameDomain)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, name)

	case c.replica.FullCommand():
		opts := app.ResolveOptions()
		if *c.replicaExtension != "" {
			opts = append(opts, db.WithExtension(*c.replicaExtension))
		}
		if *c.replicaHost != "" {
			opts = append(opts, db.WithHost(*c.replicaHost))
		}
		cluster := db.Cluster(*c.replicaCluster)
		target, err := db.Resolve(*c.replicaDB, cluster, opts...)
		if err != nil {
			return err
		}
		printTarget(out, target)
		if *c.replicaConnect {
			return ping(out, func() (io.Closer, error) {
				return app.Client().Connect(ctx, *c.replicaDB, cluster, opts...)
			})
		}

	case c.toolsdb.FullCommand():
		opts := app.ResolveOptions()
		if *c.toolsdbHost != "" {
			opts = append(opts, db.WithHost(*c.toolsdbHost))
		}
		printTarget(out, db.ResolveToolsDB(*c.toolsdbDB, opts...))
		if *c.toolsdbConnect {
			return ping(out, func() (io.Closer, error) {
				return app.Client().ToolsDB(ctx, *c.toolsdbDB, opts...)
			})
		}

	case c.userAgent.FullCommand():
		fmt.Fprintln(out, useragent.Format(*c.userAgentTool, *c.userAgentURL, *c.userAgentEmail))

	case c.checkFile.FullCommand():
		doc, err := privatefile.LoadYAMLFile(*c.checkFilePath)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: ok (%T)\n", *c.checkFilePath, doc)
	}

	return nil
}

func printTarget(out io.Writer, t db.Target) {
	fmt.Fprintf(out, "host: %s\n", t.Host)
	fmt.Fprintf(out, "database: %s\n", t.Database)
	switch {
	case t.HasCredentials():
		fmt.Fprintf(out, "user: %s\n", t.User)
	case t.DefaultsFile != "":
		fmt.Fprintf(out, "defaults-file: %s\n", t.DefaultsFile)
	}
}

func ping(out io.Writer, connect func() (io.Closer, error)) error {
	conn, err := connect()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "connection: ok")
	return conn.Close()
}
