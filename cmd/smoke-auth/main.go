package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"posthub.org/internal/bot"
	"posthub.org/internal/ids"
)

func main() {
	log.SetFlags(0)
	var (
		apiURL   = pflag.String("api-url", envOr("POSTHUB_API_URL", "http://localhost:8080"), "posthub API base URL")
		username = pflag.StringP("user", "u", "", "existing user to log in as (prompts for the password)")
	)
	pflag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	c := bot.NewAPIClient(*apiURL, nil)

	user, password := *username, ""
	if user == "" {
		user = "smoke-" + strings.ToLower(ids.New())
		password = "smoke-" + ids.New()[:10] + "1"
		if err := c.Register(ctx, user, password); err != nil {
			log.Fatalf("register %s: %v", user, err)
		}
	} else {
		password = readPassword()
	}

	res, err := c.Login(ctx, user, password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	me, err := c.Me(ctx, res.AccessToken)
	if err != nil || me != user {
		log.Fatalf("me: got %q, err %v", me, err)
	}

	before, err := c.CountPosts(ctx, res.AccessToken)
	if err != nil {
		log.Fatalf("count: %v", err)
	}
	p, err := c.CreatePost(ctx, res.AccessToken, "smoke", "created by smoke-auth")
	if err != nil {
		log.Fatalf("create post: %v", err)
	}
	if _, err := c.GetPost(ctx, res.AccessToken, p.ID); err != nil {
		log.Fatalf("get post %d: %v", p.ID, err)
	}
	after, err := c.CountPosts(ctx, res.AccessToken)
	if err != nil || after != before+1 {
		log.Fatalf("count after create: %d (before %d), err %v", after, before, err)
	}

	if err := c.Logout(ctx, res.AccessToken); err != nil {
		log.Fatalf("logout: %v", err)
	}
	if _, err := c.Me(ctx, res.AccessToken); !errors.Is(err, bot.ErrUnauthorized) {
		log.Fatalf("revoked token still accepted: %v", err)
	}

	fmt.Printf("✅ posthub auth smoke test passed: user=%s post=%d\n", user, p.ID)
}

func readPassword() string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		log.Fatal("password prompt needs a terminal")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("read password: %v", err)
	}
	return string(pw)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
