package oauthkit

import (
	"net/http"
	"strconv"

	"github.com/dpup/oauthkit/request"
	"github.com/dpup/oauthkit/univalue"
)

// ErrorInfo is a provider error normalized from whatever shape it arrived in.
type ErrorInfo struct {
	Code    string
	Message string
	Raw     univalue.Value
}

// IsZero reports whether no error was found.
func (e ErrorInfo) IsZero() bool {
	return e.Code == "" && e.Message == ""
}

func (e ErrorInfo) String() string {
	switch {
	case e.Message == "" || e.Message == e.Code:
		return e.Code
	case e.Code == "":
		return e.Message
	default:
		return e.Code + ": " + e.Message
	}
}

// ParseErrorInfo recognizes the error shapes providers use:
//
//	{"error": "invalid_grant", "error_description": "..."}        RFC 6749
//	{"error": {"code": 190, "type": "OAuthException", "message": "..."}}
//	{"errors": [{"code": 89, "message": "..."}]}
//	{"error_code": 5, "error_msg": "..."}
//	{"meta": {"code": 400, "error_type": "...", "error_message": "..."}}
//	oauth_problem=token_rejected&oauth_problem_advice=...          OAuth 1.0a
//
// The zero ErrorInfo is returned when v carries no error.
func ParseErrorInfo(v univalue.Value) ErrorInfo {
	info := ErrorInfo{Raw: v}

	if e := v.Get("error"); e.HasValue() {
		if e.Kind() == univalue.Object {
			info.Code = e.First("code", "type", "status").String()
			info.Message = e.First("message", "error_description", "description", "error_msg").String()
		} else {
			info.Code = e.String()
			info.Message = v.First("error_description", "error_message", "message", "error_reason").String()
		}
		if uri := v.Get("error_uri").String(); uri != "" && info.Message == "" {
			info.Message = uri
		}
		if info.IsZero() {
			info.Code = "error"
		}
		return info
	}

	if errs := v.Get("errors"); errs.HasValue() {
		first := errs
		if errs.Kind() == univalue.Array {
			first = errs.Index(0)
		}
		if first.Kind() == univalue.Object {
			info.Code = first.First("code", "type", "error").String()
			info.Message = first.First("message", "detail", "error_description").String()
		} else {
			info.Message = first.String()
		}
		if info.IsZero() {
			info.Code = "error"
		}
		return info
	}

	if code := v.First("error_code", "errorCode"); code.HasValue() {
		info.Code = code.String()
		info.Message = v.First("error_msg", "error_message", "errorMessage", "message").String()
		return info
	}

	if meta := v.Get("meta"); meta.Kind() == univalue.Object {
		if et := meta.Get("error_type"); et.HasValue() {
			info.Code = et.String()
			info.Message = meta.First("error_message", "error_detail").String()
			return info
		}
	}

	if problem := v.Get("oauth_problem"); problem.HasValue() {
		info.Code = problem.String()
		info.Message = v.Get("oauth_problem_advice").String()
		return info
	}

	return ErrorInfo{}
}

// ResponseErrorInfo returns the error carried by a response. Non-2xx
// responses without a recognizable payload are reported by status.
func ResponseErrorInfo(status int, v univalue.Value) ErrorInfo {
	info := ParseErrorInfo(v)
	if info.IsZero() && (status < 200 || status >= 300) {
		info = ErrorInfo{
			Code:    "http_" + strconv.Itoa(status),
			Message: http.StatusText(status),
			Raw:     v,
		}
	}
	return info
}

// CheckResponse returns an error for a response carrying neither a usable
// body nor a recognizable provider error. Provider errors are left for the
// caller to capture.
func CheckResponse(resp *request.Response) error {
	if resp.OK() {
		if resp.ParseErr != nil {
			return resp.ParseErr
		}
		return nil
	}
	if ParseErrorInfo(resp.Value).IsZero() {
		return resp.Err()
	}
	return nil
}
