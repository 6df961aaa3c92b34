package oauthkit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dpup/oauthkit/request"
	"github.com/dpup/oauthkit/univalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapUserInfo_Default(t *testing.T) {
	v := parse(t, `{
		"sub": "42", "id": "ignored", "preferred_username": "ann",
		"name": "Ann Lee", "given_name": "Ann", "family_name": "Lee",
		"email": "ann@example.com", "picture": "https://img.test/a.png",
		"birthdate": "1990-04-12", "gender": "F", "locale": "en-GB"
	}`)
	u := MapUserInfo(v, nil)
	assert.True(t, u.IsSuccessful())
	assert.Equal(t, "42", u.UserID, "first mapping wins")
	assert.Equal(t, "ann", u.UserName)
	assert.Equal(t, "Ann Lee", u.DisplayName)
	assert.Equal(t, "Ann", u.FirstName)
	assert.Equal(t, "Lee", u.LastName)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, "https://img.test/a.png", u.Userpic)
	assert.Equal(t, time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC), u.Birthday)
	assert.Equal(t, "female", u.Sex)
	assert.Equal(t, "en-GB", u.Locale)
	assert.Equal(t, "ignored", u.Raw.Get("id").String())
}

func TestMapUserInfo_Custom(t *testing.T) {
	fm := FieldMap{
		{Target: FieldUserID, Source: "response.0.uid"},
		{Target: FieldUserpic, Source: "response.0.uid", Format: "https://graph.test/%s/picture"},
		{Target: FieldBirthday, Source: "response.0.bdate", Format: "2.1.2006"},
		{Target: FieldDisplayName, Transform: func(v univalue.Value) string {
			p := v.Path("response.0")
			return strings.TrimSpace(p.Get("first_name").String() + " " + p.Get("last_name").String())
		}},
	}.Merge(DefaultFieldMap)

	v := parse(t, `{"response":[{"uid":1001,"first_name":"Ivan","last_name":"Petrov","bdate":"3.7.1985"}]}`)
	u := MapUserInfo(v, fm)
	assert.Equal(t, "1001", u.UserID)
	assert.Equal(t, "https://graph.test/1001/picture", u.Userpic)
	assert.Equal(t, "Ivan Petrov", u.DisplayName)
	assert.Equal(t, time.Date(1985, 7, 3, 0, 0, 0, 0, time.UTC), u.Birthday)
}

func TestMapUserInfo_MissingFields(t *testing.T) {
	u := MapUserInfo(parse(t, `{"unrelated":true}`), nil)
	assert.Empty(t, u.UserID)
	assert.True(t, u.Birthday.IsZero())

	u = MapUserInfo(parse(t, `{"birthday":"not a date","gender":"unknown"}`), nil)
	assert.True(t, u.Birthday.IsZero())
	assert.Empty(t, u.Sex)
}

func TestFetchUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_token","error_description":"expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":9,"login":"octo"}`))
	}))
	defer srv.Close()

	cfg := ProviderConfig{Name: Name("gh"), UserInfoURL: srv.URL}
	exec := request.NewExecutor()

	u, err := FetchUserInfo(t.Context(), exec, cfg, request.Bearer{Token: "good"})
	require.NoError(t, err)
	assert.Equal(t, "9", u.UserID)
	assert.Equal(t, "octo", u.UserName)

	u, err = FetchUserInfo(t.Context(), exec, cfg, request.Bearer{Token: "bad"})
	require.NoError(t, err)
	assert.False(t, u.IsSuccessful())
	assert.Equal(t, "invalid_token", u.Error.Code)

	_, err = FetchUserInfo(t.Context(), exec, ProviderConfig{Name: Name("x")}, request.None)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestFetchUserInfo_HTTPErrorWithoutErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	cfg := ProviderConfig{Name: Name("gh"), UserInfoURL: srv.URL}
	u, err := FetchUserInfo(t.Context(), request.NewExecutor(), cfg, request.Bearer{Token: "good"})
	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrRequest)

	var reqErr *request.Error
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
	assert.Equal(t, "<html>maintenance</html>", string(reqErr.Body))
}
