// Command token mints a bearer token for local testing and operator scripts.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Africahassucceed/celebsbridgenew/internal/auth"
	"github.com/Africahassucceed/celebsbridgenew/internal/config"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config file")
	subject := flag.String("sub", "", "principal id")
	role := flag.String("role", string(auth.RoleUser), "user or admin")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "-sub is required")
		os.Exit(2)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	tok, err := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL).
		GenerateToken(auth.Principal{ID: *subject, Role: auth.Role(*role)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
