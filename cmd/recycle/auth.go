package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recycle-ai/recycle/internal/activation"
	"github.com/recycle-ai/recycle/internal/auth"
	"github.com/recycle-ai/recycle/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the account on this machine",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the remembered account",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().String("email", "", "account email")
		c.Flags().String("password", "", "account password")
		_ = c.MarkFlagRequired("email")
		_ = c.MarkFlagRequired("password")
	}
	signupCmd.Flags().String("name", "", "display name")
	_ = signupCmd.MarkFlagRequired("name")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	resp, err := a.auth.Login(ctx, auth.Credentials{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		a.activation.Record(ctx, activation.BuildParams{Kind: activation.KindLogin, Err: err})
		return errors.New(userFacing(err))
	}
	if err := a.session.Login(ctx, *resp.User); err != nil {
		return fmt.Errorf("signed in, but the session could not be saved: %w", err)
	}
	a.activation.Record(ctx, activation.BuildParams{Kind: activation.KindLogin, UserID: string(resp.User.ID)})

	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", resp.User.DisplayName())
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	reg := auth.Registration{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Password: password}
	if err := a.auth.Signup(cmd.Context(), reg); err != nil {
		return errors.New(userFacing(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Registration successful. Sign in with `recycle login`.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	userID := ""
	if u, ok := a.session.Current(); ok {
		userID = string(u.ID)
	}
	err = a.session.Logout(ctx)
	a.activation.Record(ctx, activation.BuildParams{Kind: activation.KindLogout, UserID: userID, Err: err})

	var notifyErr *session.NotifyError
	if err != nil && !errors.As(err, &notifyErr) {
		return fmt.Errorf("still signed in: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Signed out")
	if notifyErr != nil {
		warnColor.Fprintf(out, "Warning: %s\n", userFacing(notifyErr.Err))
	}
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	u, ok := a.session.Current()
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", u.DisplayName(), u.Email)
	return nil
}
