package main

import (
	"io"
	"time"

	"github.com/dpup/oauthkit"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer, headers ...interface{}) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	if len(headers) > 0 {
		row := make(table.Row, len(headers))
		for i, h := range headers {
			row[i] = text.FgHiCyan.Sprint(h)
		}
		t.AppendHeader(row)
	}
	return t
}

// renderToken prints a token as key/value rows. Secrets are printed in full
// since the point of the command is to hand them to the user.
func renderToken(w io.Writer, tok oauthkit.Token) {
	t := newTable(w, "FIELD", "VALUE")
	if !tok.IsSuccessful() {
		info := tok.ErrorInfo()
		t.AppendRow(table.Row{"error", text.FgRed.Sprint(info.Code)})
		t.AppendRow(table.Row{"message", info.Message})
		t.Render()
		return
	}
	t.AppendRow(table.Row{"access_token", tok.Value()})
	switch tok := tok.(type) {
	case *oauthkit.OAuth2AccessToken:
		t.AppendRow(table.Row{"token_type", tok.TokenType()})
		if rt := tok.RefreshToken(); rt != "" {
			t.AppendRow(table.Row{"refresh_token", rt})
		}
		if exp := tok.ExpiresAt(); !exp.IsZero() {
			t.AppendRow(table.Row{"expires_at", exp.Format(time.RFC3339)})
		}
		if scope := tok.Scope(); scope != "" {
			t.AppendRow(table.Row{"scope", scope})
		}
	case *oauthkit.OAuth1AccessToken:
		t.AppendRow(table.Row{"token_secret", tok.Secret()})
	}
	t.Render()
}

func renderProfile(w io.Writer, info *oauthkit.UserInfo) {
	t := newTable(w, "FIELD", "VALUE")
	if !info.IsSuccessful() {
		t.AppendRow(table.Row{"error", text.FgRed.Sprint(info.Error.Code)})
		t.AppendRow(table.Row{"message", info.Error.Message})
		t.Render()
		return
	}
	rows := []struct{ k, v string }{
		{oauthkit.FieldUserID, info.UserID},
		{oauthkit.FieldUserName, info.UserName},
		{oauthkit.FieldDisplayName, info.DisplayName},
		{oauthkit.FieldEmail, info.Email},
		{oauthkit.FieldURL, info.URL},
		{oauthkit.FieldUserpic, info.Userpic},
	}
	for _, r := range rows {
		if r.v != "" {
			t.AppendRow(table.Row{r.k, r.v})
		}
	}
	if !info.Birthday.IsZero() {
		t.AppendRow(table.Row{oauthkit.FieldBirthday, info.Birthday.Format("2006-01-02")})
	}
	t.Render()
}
