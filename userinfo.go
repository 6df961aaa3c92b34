package oauthkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/request"
	"github.com/dpup/oauthkit/univalue"
	"github.com/spf13/cast"
)

// UserInfo is a provider profile normalized through a FieldMap. Fields the
// map does not cover stay reachable on Raw.
type UserInfo struct {
	UserID      string
	UserName    string
	DisplayName string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	URL         string
	Userpic     string
	Birthday    time.Time
	Sex         string
	Locale      string

	Raw   univalue.Value
	Error ErrorInfo
}

// IsSuccessful reports whether the provider returned a profile.
func (u *UserInfo) IsSuccessful() bool {
	return u != nil && u.Error.IsZero()
}

// Targets of a FieldMapping.
const (
	FieldUserID      = "userId"
	FieldUserName    = "userName"
	FieldDisplayName = "displayName"
	FieldFirstName   = "firstName"
	FieldLastName    = "lastName"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldURL         = "url"
	FieldUserpic     = "userpic"
	FieldBirthday    = "birthday"
	FieldSex         = "sex"
	FieldLocale      = "locale"
)

// FieldMapping fills one UserInfo field.
type FieldMapping struct {
	Target string

	// Source is a dotted path into the profile response.
	Source string

	// Format is a time layout for FieldBirthday, or a fmt verb string such as
	// "https://graph.example.com/%s/picture" for text fields.
	Format string

	// Transform, when set, replaces the Source lookup.
	Transform func(univalue.Value) string
}

// FieldMap is applied in order; the first mapping producing a value for a
// target wins.
type FieldMap []FieldMapping

// DefaultFieldMap covers OpenID Connect claims and the common non-standard
// spellings.
var DefaultFieldMap = FieldMap{
	{Target: FieldUserID, Source: "sub"},
	{Target: FieldUserID, Source: "id"},
	{Target: FieldUserID, Source: "user_id"},
	{Target: FieldUserName, Source: "preferred_username"},
	{Target: FieldUserName, Source: "login"},
	{Target: FieldUserName, Source: "username"},
	{Target: FieldUserName, Source: "screen_name"},
	{Target: FieldDisplayName, Source: "name"},
	{Target: FieldDisplayName, Source: "display_name"},
	{Target: FieldFirstName, Source: "given_name"},
	{Target: FieldFirstName, Source: "first_name"},
	{Target: FieldLastName, Source: "family_name"},
	{Target: FieldLastName, Source: "last_name"},
	{Target: FieldEmail, Source: "email"},
	{Target: FieldPhone, Source: "phone_number"},
	{Target: FieldPhone, Source: "phone"},
	{Target: FieldURL, Source: "profile"},
	{Target: FieldURL, Source: "html_url"},
	{Target: FieldURL, Source: "link"},
	{Target: FieldUserpic, Source: "picture"},
	{Target: FieldUserpic, Source: "avatar_url"},
	{Target: FieldBirthday, Source: "birthdate", Format: "2006-01-02"},
	{Target: FieldBirthday, Source: "birthday"},
	{Target: FieldSex, Source: "gender", Transform: normalizeSex("gender")},
	{Target: FieldLocale, Source: "locale"},
}

// Resolve returns the value mapping m produces from v.
func (m FieldMapping) Resolve(v univalue.Value) string {
	var s string
	if m.Transform != nil {
		s = m.Transform(v)
	} else {
		s = v.Path(m.Source).String()
	}
	if s != "" && m.Format != "" && m.Target != FieldBirthday && strings.Contains(m.Format, "%") {
		s = fmt.Sprintf(m.Format, s)
	}
	return s
}

// MapUserInfo applies fm to a profile response. A nil map uses
// DefaultFieldMap.
func MapUserInfo(v univalue.Value, fm FieldMap) *UserInfo {
	if fm == nil {
		fm = DefaultFieldMap
	}
	u := &UserInfo{Raw: v}
	for _, m := range fm {
		if u.has(m.Target) {
			continue
		}
		s := m.Resolve(v)
		if s == "" {
			continue
		}
		if m.Target == FieldBirthday {
			if t, err := parseDate(s, m.Format); err == nil {
				u.Birthday = t
			}
			continue
		}
		u.set(m.Target, s)
	}
	return u
}

// Merge returns fm with base appended, so entries in fm take precedence.
func (fm FieldMap) Merge(base FieldMap) FieldMap {
	out := make(FieldMap, 0, len(fm)+len(base))
	out = append(out, fm...)
	return append(out, base...)
}

func (u *UserInfo) field(target string) *string {
	switch target {
	case FieldUserID:
		return &u.UserID
	case FieldUserName:
		return &u.UserName
	case FieldDisplayName:
		return &u.DisplayName
	case FieldFirstName:
		return &u.FirstName
	case FieldLastName:
		return &u.LastName
	case FieldEmail:
		return &u.Email
	case FieldPhone:
		return &u.Phone
	case FieldURL:
		return &u.URL
	case FieldUserpic:
		return &u.Userpic
	case FieldSex:
		return &u.Sex
	case FieldLocale:
		return &u.Locale
	}
	return nil
}

func (u *UserInfo) has(target string) bool {
	if target == FieldBirthday {
		return !u.Birthday.IsZero()
	}
	f := u.field(target)
	return f == nil || *f != ""
}

func (u *UserInfo) set(target, value string) {
	if f := u.field(target); f != nil {
		*f = value
	}
}

func parseDate(s, layout string) (time.Time, error) {
	if layout != "" && !strings.Contains(layout, "%") {
		return time.Parse(layout, s)
	}
	return cast.ToTimeE(s)
}

func normalizeSex(source string) func(univalue.Value) string {
	return func(v univalue.Value) string {
		switch strings.ToLower(v.Path(source).String()) {
		case "m", "male", "man", "1":
			return "male"
		case "f", "female", "woman", "2":
			return "female"
		}
		return ""
	}
}

// FetchUserInfo requests the profile endpoint with auth and maps the result.
func FetchUserInfo(ctx context.Context, exec *request.Executor, cfg ProviderConfig, auth request.Authorizer) (*UserInfo, error) {
	if cfg.UserInfoURL == "" {
		return nil, errors.WrapPrefix(ErrNotSupported, cfg.Name.String()+": no user info endpoint", 0)
	}
	req := request.New(cfg.UserInfoHTTPMethod(), cfg.UserInfoURL)
	req.Authorizer = auth

	resp, err := exec.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := CheckResponse(resp); err != nil {
		return nil, errors.WrapPrefix(err, cfg.Name.String()+": user info", 0)
	}
	if info := ResponseErrorInfo(resp.StatusCode, resp.Value); !info.IsZero() {
		return &UserInfo{Raw: resp.Value, Error: info}, nil
	}
	return MapUserInfo(resp.Value, cfg.FieldMap), nil
}
