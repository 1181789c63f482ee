// Package deeplink builds and parses the custom-scheme auth callback,
// {scheme}://auth/callback?code={code}.
package deeplink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	callbackHost = "auth"
	callbackPath = "/callback"
)

var (
	ErrNotCallback = errors.New("not an auth callback link")
	ErrMissingCode = errors.New("auth callback has no code")
)

// CallbackError is reported by the backend in place of a code,
// e.g. when the link expired.
type CallbackError struct {
	Code        string
	Description string
}

func (e *CallbackError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

// AuthCallback returns the link that confirms an account.
func AuthCallback(scheme, code string) string {
	u := url.URL{
		Scheme:   scheme,
		Host:     callbackHost,
		Path:     callbackPath,
		RawQuery: url.Values{"code": {code}}.Encode(),
	}
	return u.String()
}

// ParseAuthCallback extracts the code from a callback link. Parameters in
// the fragment are accepted too, since some mail clients rewrite the query.
func ParseAuthCallback(scheme, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotCallback, err)
	}
	if !strings.EqualFold(u.Scheme, scheme) || u.Host != callbackHost || strings.TrimRight(u.Path, "/") != callbackPath {
		return "", ErrNotCallback
	}

	params := u.Query()
	if fragment, err := url.ParseQuery(u.Fragment); err == nil {
		for k, v := range fragment {
			if params.Get(k) == "" {
				params[k] = v
			}
		}
	}

	if e := params.Get("error"); e != "" {
		return "", &CallbackError{Code: e, Description: params.Get("error_description")}
	}

	code := params.Get("code")
	if code == "" {
		return "", ErrMissingCode
	}
	return code, nil
}
