// quire-token manages the Ed25519 keys quire verifies bearer tokens with,
// and issues tokens for local development.
//
// Usage:
//
//	quire-token keygen [-dir data]
//	quire-token issue -org <uuid> [-role reader] [-subject <uuid>] [-dir data] [-ttl 24h]
//
// keygen writes data/jwt_private.pem and data/jwt_public.pem (mode 0600) and
// refuses to overwrite existing keys. Point QUIRE_JWT_PUBLIC_KEY at the public
// key; only token issuers need the private key.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/quire/internal/auth"
	"github.com/ashita-ai/quire/internal/model"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: quire-token keygen|issue [flags]")
	}
	switch args[0] {
	case "keygen":
		return keygen(args[1:], out)
	case "issue":
		return issue(args[1:], out)
	default:
		return fmt.Errorf("unknown command %q (want keygen or issue)", args[0])
	}
}

func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	dir := fs.String("dir", "data", "directory to write the key pair into")
	if err := fs.Parse(args); err != nil {
		return err
	}

	privPath, pubPath, err := auth.WriteKeyPair(*dir)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "wrote %s\nwrote %s\n", privPath, pubPath)
	return nil
}

func issue(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	dir := fs.String("dir", "data", "directory holding the key pair")
	orgFlag := fs.String("org", "", "organization ID the token is scoped to (required)")
	roleFlag := fs.String("role", string(model.RoleReader), "role: admin, analyst or reader")
	subjectFlag := fs.String("subject", "", "subject ID (default: random)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	orgID, err := uuid.Parse(*orgFlag)
	if err != nil {
		return fmt.Errorf("-org must be a UUID: %w", err)
	}
	role, err := model.ParseRole(*roleFlag)
	if err != nil {
		return err
	}
	subject := uuid.New()
	if *subjectFlag != "" {
		if subject, err = uuid.Parse(*subjectFlag); err != nil {
			return fmt.Errorf("-subject must be a UUID: %w", err)
		}
	}

	mgr, err := auth.NewJWTManager(
		filepath.Join(*dir, auth.PrivateKeyFile),
		filepath.Join(*dir, auth.PublicKeyFile),
		*ttl,
	)
	if err != nil {
		return fmt.Errorf("load keys from %s (run keygen first?): %w", *dir, err)
	}

	token, expires, err := mgr.IssueToken(subject, orgID, role)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, token)
	_, _ = fmt.Fprintf(os.Stderr, "subject=%s org=%s role=%s expires=%s\n",
		subject, orgID, role, expires.Format(time.RFC3339))
	return nil
}
