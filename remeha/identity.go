package remeha

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/evcc-io/evcc/api"
	"github.com/evcc-io/evcc/util"
	"github.com/evcc-io/evcc/util/oauth"
	"github.com/evcc-io/evcc/util/request"
	"golang.org/x/oauth2"
)

const (
	loginTimeout   = 60 * time.Second
	refreshTimeout = 30 * time.Second
)

// Identity performs the interactive Remeha Home login against the BDR B2C
// tenant and exchanges/refreshes tokens.
type Identity struct {
	client *request.Helper
	log    *util.Logger

	authorizeURL    string
	selfAssertedURL string
	confirmedURL    string
	tokenURL        string

	loginTimeout   time.Duration
	refreshTimeout time.Duration
}

func NewIdentity(log *util.Logger) (*Identity, error) {
	client := request.NewHelper(log)
	client.Jar, _ = cookiejar.New(nil)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	v := &Identity{
		client:          client,
		log:             log,
		authorizeURL:    AUTHORIZE_URL,
		selfAssertedURL: SELF_ASSERTED_URL,
		confirmedURL:    CONFIRMED_URL,
		tokenURL:        TOKEN_URL,
		loginTimeout:    loginTimeout,
		refreshTimeout:  refreshTimeout,
	}

	return v, nil
}

// Login drives the full credential exchange. The whole flow is bounded by
// loginTimeout and fails with api.ErrTimeout when exceeded.
func (v *Identity) Login(email, password string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), v.loginTimeout)
	defer cancel()

	token, err := v.login(ctx, email, password)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, api.ErrTimeout
	}

	return token, err
}

func (v *Identity) login(ctx context.Context, email, password string) (*oauth2.Token, error) {
	cv := oauth2.GenerateVerifier()
	state := oauth2.GenerateVerifier()

	data := url.Values{
		"response_type":         {"code"},
		"client_id":             {Oauth2Config.ClientID},
		"redirect_uri":          {Oauth2Config.RedirectURL},
		"scope":                 {strings.Join(Oauth2Config.Scopes, " ")},
		"state":                 {state},
		"code_challenge":        {oauth2.S256ChallengeFromVerifier(cv)},
		"code_challenge_method": {"S256"},
		"p":                     {POLICY},
		"brand":                 {"remeha"},
		"lang":                  {"en"},
		"nonce":                 {"defaultNonce"},
		"prompt":                {"login"},
		"signUp":                {"False"},
	}

	// start a new login transaction
	uri := v.authorizeURL + "?" + data.Encode()
	req, _ := http.NewRequestWithContext(ctx, "GET", uri, nil)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not get authorization page: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("authorization page returned unexpected status: %d", resp.StatusCode)
	}

	// the server assigns a transaction id via the x-request-id header,
	// which the next steps expect base64url-wrapped in json
	requestID := resp.Header.Get("x-request-id")
	if requestID == "" {
		return nil, errors.New("missing x-request-id header")
	}
	stateProperties := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"TID":"%s"}`, requestID)))

	csrfToken, err := v.csrfToken()
	if err != nil {
		return nil, err
	}

	// post the credentials
	params := url.Values{
		"request_type": {"RESPONSE"},
		"signInName":   {email},
		"password":     {password},
	}

	uri = v.selfAssertedURL + "?" + url.Values{
		"tx": {"StateProperties=" + stateProperties},
		"p":  {POLICY_LOWER},
	}.Encode()

	req, _ = http.NewRequestWithContext(ctx, "POST", uri, strings.NewReader(params.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-csrf-token", csrfToken)

	resp, err = v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not post credentials: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("could not read credentials response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("credentials post returned unexpected status: %d", resp.StatusCode)
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("could not decode credentials response: %w", err)
	}
	if status.Status != "200" {
		return nil, ErrAuthFailed
	}

	// confirm the login; the authorization code is in the redirect target
	uri = v.confirmedURL + "?" + url.Values{
		"rememberMe": {"false"},
		"csrf_token": {csrfToken},
		"tx":         {"StateProperties=" + stateProperties},
		"p":          {POLICY_LOWER},
	}.Encode()

	req, _ = http.NewRequestWithContext(ctx, "GET", uri, nil)

	resp, err = v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not confirm login: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, errors.New("could not find location header")
	}

	parsedUrl, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("could not parse callback url: %w", err)
	}
	code := parsedUrl.Query().Get("code")
	if code == "" {
		return nil, errors.New("missing authorization code")
	}

	return v.requestToken(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {Oauth2Config.ClientID},
		"code":          {code},
		"code_verifier": {cv},
		"redirect_uri":  {Oauth2Config.RedirectURL},
	}, false)
}

// csrfToken finds the CSRF token the auth host placed in the x-ms-cpim-csrf
// cookie during the authorize request.
func (v *Identity) csrfToken() (string, error) {
	u, err := url.Parse(v.authorizeURL)
	if err != nil {
		return "", err
	}

	for _, cookie := range v.client.Jar.Cookies(u) {
		if cookie.Name == "x-ms-cpim-csrf" {
			return cookie.Value, nil
		}
	}

	return "", errors.New("missing x-ms-cpim-csrf cookie")
}

// RefreshToken implements oauth.TokenRefresher. A definitive 400 from the
// token endpoint yields ErrAuthExpired so the caller re-authenticates
// instead of retrying forever.
func (v *Identity) RefreshToken(token *oauth2.Token) (*oauth2.Token, error) {
	res, err := v.requestToken(context.Background(), url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {Oauth2Config.ClientID},
		"refresh_token": {token.RefreshToken},
	}, true)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, api.ErrTimeout
	}

	return res, err
}

func (v *Identity) requestToken(ctx context.Context, params url.Values, refresh bool) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, v.refreshTimeout)
	defer cancel()

	uri := v.tokenURL + "?" + url.Values{"p": {POLICY}}.Encode()
	req, _ := http.NewRequestWithContext(ctx, "POST", uri, strings.NewReader(params.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not get token: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("could not read token response: %w", err)
	}

	if resp.StatusCode == http.StatusBadRequest {
		var res struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.Unmarshal(body, &res)
		v.log.ERROR.Printf("token request returned '400 Bad Request': %s", res.ErrorDescription)

		if refresh {
			return nil, ErrAuthExpired
		}
		return nil, fmt.Errorf("token request rejected: %s", res.ErrorDescription)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token request returned unexpected status: %d", resp.StatusCode)
	}

	var token TokenRequestStruct
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("could not decode token: %w", err)
	}

	token.Expiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	return &token.Token, nil
}

// TokenSource wraps the token in a self-refreshing source.
func (v *Identity) TokenSource(token *oauth2.Token) (oauth2.TokenSource, error) {
	ts := oauth2.ReuseTokenSource(token, oauth.RefreshTokenSource(token, v))
	_, err := ts.Token()
	return ts, err
}
