package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dpup/oauthkit"
	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/oauth1"
	"github.com/dpup/oauthkit/oauth2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newAuthURLCmd(root *rootOptions) *cobra.Command {
	var (
		returnURL string
		scope     string
		params    []string
	)
	cmd := &cobra.Command{
		Use:   "authurl",
		Short: "Print the authorization URL for a provider",
		Long: `Start an authorization attempt and print the URL the user should visit.
For OAuth 1.0a providers a request token is fetched first; its secret is
printed so the attempt can be finished with "oauthkit exchange".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOf(cmd)
			c, err := root.client(ctx)
			if err != nil {
				return err
			}
			var opts []oauthkit.FlowOption
			if returnURL != "" {
				opts = append(opts, oauthkit.WithReturnURL(returnURL))
			}
			if scope != "" {
				opts = append(opts, oauthkit.WithScope(scope))
			}
			for _, kv := range params {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return errors.Errorf("--param %q: expected key=value", kv)
				}
				opts = append(opts, oauthkit.WithParameter(k, v))
			}

			flow := c.NewFlow(opts...)
			authURL, err := flow.AuthorizationURL(ctx)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout(), "FIELD", "VALUE")
			t.AppendRow(table.Row{"url", authURL})
			if f, ok := flow.(*oauth1.Flow); ok {
				rt, err := f.RequestToken(ctx)
				if err != nil {
					return err
				}
				t.AppendRow(table.Row{"request_token", rt.Value()})
				t.AppendRow(table.Row{"request_secret", rt.Secret()})
			} else {
				t.AppendRow(table.Row{"state", flow.Key()})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&returnURL, "return-url", "", "Override the configured returnUrl")
	cmd.Flags().StringVar(&scope, "scope", "", "Scope requested in addition to defaultScope")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Extra authorization parameter as key=value, repeatable")
	return cmd
}

func newExchangeCmd(root *rootOptions) *cobra.Command {
	var (
		callback      string
		code          string
		username      string
		password      string
		requestToken  string
		requestSecret string
		verifier      string
	)
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange an authorization code or verifier for an access token",
		Long: `Finish an authorization attempt. OAuth 2.0 providers take --code (or
--username/--password for the password grant, nothing for client
credentials). OAuth 1.0a providers take --request-token, --request-secret
and --verifier. --callback accepts the full redirect URL instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOf(cmd)
			c, err := root.client(ctx)
			if err != nil {
				return err
			}
			if callback != "" {
				params, err := oauthkit.CallbackParams(callback)
				if err != nil {
					return err
				}
				if err := oauthkit.CallbackError(params); err != nil {
					return err
				}
				code = firstNonEmpty(code, params.Get("code"))
				verifier = firstNonEmpty(verifier, params.Get("oauth_verifier"))
				requestToken = firstNonEmpty(requestToken, params.Get("oauth_token"))
			}

			var tok oauthkit.Token
			switch c := c.(type) {
			case *oauth2.Client:
				var opts []oauthkit.FlowOption
				if username != "" {
					opts = append(opts, oauthkit.WithCredentials(username, password))
				}
				tok, err = c.Exchange(ctx, code, opts...)
			case *oauth1.Client:
				tok, err = c.Exchange(ctx, oauthkit.NewOAuth1AccessToken(requestToken, requestSecret), verifier)
			default:
				return errors.WrapPrefix(oauthkit.ErrNotSupported, "exchange", 0)
			}
			if err != nil {
				return err
			}
			renderToken(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&callback, "callback", "", "Redirect URL received after authorization")
	f.StringVar(&code, "code", "", "OAuth 2.0 authorization code")
	f.StringVar(&username, "username", "", "Resource owner username for the password grant")
	f.StringVar(&password, "password", "", "Resource owner password for the password grant")
	f.StringVar(&requestToken, "request-token", "", "OAuth 1.0a request token")
	f.StringVar(&requestSecret, "request-secret", "", "OAuth 1.0a request token secret")
	f.StringVar(&verifier, "verifier", "", "OAuth 1.0a oauth_verifier")
	return cmd
}

func newRefreshCmd(root *rootOptions) *cobra.Command {
	var refreshToken string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange a refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOf(cmd)
			c, err := oauth2Client(ctx, root)
			if err != nil {
				return err
			}
			tok, err := c.Refresh(ctx, oauthkit.NewOAuth2AccessToken("", "", refreshToken, time.Time{}))
			if err != nil {
				return err
			}
			renderToken(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Refresh token")
	_ = cmd.MarkFlagRequired("refresh-token")
	return cmd
}

func newRevokeCmd(root *rootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an OAuth 2.0 access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOf(cmd)
			c, err := oauth2Client(ctx, root)
			if err != nil {
				return err
			}
			if err := c.Revoke(ctx, oauthkit.NewOAuth2AccessToken(token, "", "", time.Time{})); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "revoked")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Access token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newProfileCmd(root *rootOptions) *cobra.Command {
	var (
		token       string
		tokenSecret string
		raw         bool
	)
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Fetch the normalized profile of a token's owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOf(cmd)
			c, err := root.client(ctx)
			if err != nil {
				return err
			}
			var tok oauthkit.Token
			if c.Protocol() == oauthkit.OAuth1 {
				tok = oauthkit.NewOAuth1AccessToken(token, tokenSecret)
			} else {
				tok = oauthkit.NewOAuth2AccessToken(token, "", "", time.Time{})
			}
			info, err := c.UserProfile(ctx, tok)
			if err != nil {
				return err
			}
			if raw {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info.Raw)
			}
			renderProfile(cmd.OutOrStdout(), info)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Access token")
	cmd.Flags().StringVar(&tokenSecret, "token-secret", "", "OAuth 1.0a token secret")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the provider response as JSON")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func oauth2Client(ctx context.Context, root *rootOptions) (*oauth2.Client, error) {
	c, err := root.client(ctx)
	if err != nil {
		return nil, err
	}
	c2, ok := c.(*oauth2.Client)
	if !ok {
		return nil, errors.WrapPrefix(oauthkit.ErrNotSupported, c.Name().String()+" is not an OAuth 2.0 provider", 0)
	}
	return c2, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
