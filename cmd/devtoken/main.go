// Command devtoken mints a bearer token for local testing of the consent API and can
// fingerprint a document the way API clients are expected to.
//
//	devtoken -owner 6f1c... -ttl 2h
//	devtoken -hash ./terms.pdf
package main

import (
	"flag"
	"fmt"
	"os"

	jwttoken "consentwindow/internal/jwt_token"
	"consentwindow/internal/platform/config"
	id "consentwindow/pkg/domain"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	ownerFlag := fs.String("owner", "", "owner UUID; a random one is generated when empty")
	ttl := fs.Duration("ttl", cfg.Auth.TokenTTL, "token lifetime")
	hashFile := fs.String("hash", "", "print the fingerprint of this file instead of minting a token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *hashFile != "" {
		data, err := os.ReadFile(*hashFile)
		if err != nil {
			return err
		}
		fmt.Println(id.FingerprintOf(data))
		return nil
	}

	owner := id.NewOwnerID()
	if *ownerFlag != "" {
		if owner, err = id.ParseOwnerID(*ownerFlag); err != nil {
			return err
		}
	}

	svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	token, err := svc.GenerateAccessToken(owner, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "owner: %s\n", owner)
	fmt.Println(token)
	return nil
}
