// @title Medication Identification API
// @version 1.0
// @description Identifies medications from photos and returns FDA label information.
// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"medid-server-go/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (defaults to .config.yaml)")
	stdio := flag.Bool("mcp-stdio", false, "serve MCP tools over stdin/stdout instead of HTTP")
	issueToken := flag.String("issue-token", "", "print a bearer token for the given subject and exit")
	scope := flag.String("scope", "api", "scope claim for -issue-token")
	flag.Parse()

	opts := bootstrap.Options{ConfigPath: *configPath}

	switch {
	case *issueToken != "":
		token, err := bootstrap.IssueToken(opts, *issueToken, *scope)
		if err != nil {
			fail(err)
		}
		fmt.Println(token)
	case *stdio:
		if err := bootstrap.ServeStdio(context.Background(), opts); err != nil {
			fail(err)
		}
	default:
		fmt.Printf("[%s] [INFO] [BOOT] starting medid-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
		if err := bootstrap.Run(context.Background(), opts); err != nil {
			fail(err)
		}
	}
}

func fail(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "medid-server failed: %v\n", err)
	os.Exit(1)
}
