package roborock

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var baseURLs = []string{
	"https://usiot.roborock.com",
	"https://euiot.roborock.com",
	"https://cniot.roborock.com",
	"https://ruiot.roborock.com",
}

type loginInfo struct {
	BaseURL     string
	CountryCode string
	Country     string
}

// APIClient talks to the Roborock account REST API. It handles the email
// code login flow and home data retrieval; device traffic goes over MQTT.
type APIClient struct {
	username   string
	baseURL    string
	httpClient *http.Client
	clientID   string
	info       *loginInfo
}

func NewAPIClient(username, baseURL string) *APIClient {
	return &APIClient{
		username: username,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		clientID: randomClientDeviceID(),
	}
}

func randomClientDeviceID() string {
	b := make([]byte, 16)
	_, _ = cryptorand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (c *APIClient) getLoginInfo(ctx context.Context) (*loginInfo, error) {
	if c.info != nil {
		return c.info, nil
	}
	urls := baseURLs
	if c.baseURL != "" {
		urls = []string{c.baseURL}
	}
	for _, base := range urls {
		resp, err := c.doRequest(ctx, "POST", base+"/api/v1/getUrlByEmail", map[string]string{
			"email":           c.username,
			"needtwostepauth": "false",
		}, nil, nil)
		if err != nil {
			continue
		}
		if int(asFloat(resp["code"])) != 200 {
			return nil, fmt.Errorf("getUrlByEmail failed: %v", resp["msg"])
		}
		data, _ := resp["data"].(map[string]any)
		if data == nil {
			continue
		}
		country, _ := data["country"].(string)
		urlStr, _ := data["url"].(string)
		if urlStr == "" {
			continue
		}
		c.info = &loginInfo{
			BaseURL:     urlStr,
			Country:     country,
			CountryCode: fmt.Sprintf("%v", data["countrycode"]),
		}
		return c.info, nil
	}
	return nil, errors.New("no response from any base url")
}

func (c *APIClient) baseURLOrLogin(ctx context.Context) (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	info, err := c.getLoginInfo(ctx)
	if err != nil {
		return "", err
	}
	return info.BaseURL, nil
}

// BaseURL resolves the account's regional API endpoint.
func (c *APIClient) BaseURL(ctx context.Context) (string, error) {
	return c.baseURLOrLogin(ctx)
}

// RequestCode asks the cloud to email a one time login code.
func (c *APIClient) RequestCode(ctx context.Context) error {
	base, err := c.baseURLOrLogin(ctx)
	if err != nil {
		return err
	}
	headers := map[string]string{
		"header_clientid":   c.headerClientID(),
		"header_clientlang": "en",
	}
	resp, err := c.doRequest(ctx, "POST", base+"/api/v4/email/code/send", nil, headers, map[string]string{
		"email":    c.username,
		"type":     "login",
		"platform": "",
	})
	if err != nil {
		return err
	}
	if int(asFloat(resp["code"])) != 200 {
		return fmt.Errorf("request code failed: %v", resp["msg"])
	}
	return nil
}

// CodeLogin exchanges an emailed code for account user data.
func (c *APIClient) CodeLogin(ctx context.Context, code string) (*UserData, error) {
	base, err := c.baseURLOrLogin(ctx)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"header_clientid": c.headerClientID()}
	resp, err := c.doRequest(ctx, "POST", base+"/api/v1/loginWithCode", map[string]string{
		"username":       c.username,
		"verifycode":     code,
		"verifycodetype": "AUTH_EMAIL_CODE",
	}, headers, nil)
	if err != nil {
		return nil, err
	}
	if int(asFloat(resp["code"])) != 200 {
		return nil, fmt.Errorf("login failed: %v", resp["msg"])
	}
	data, _ := resp["data"].(map[string]any)
	if data == nil {
		return nil, errors.New("missing user data")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return ParseUserData(raw)
}

// GetHomeID looks up the account's home identifier.
func (c *APIClient) GetHomeID(ctx context.Context, userData *UserData) (int64, error) {
	base, err := c.baseURLOrLogin(ctx)
	if err != nil {
		return 0, err
	}
	headers := map[string]string{
		"header_clientid": c.headerClientID(),
		"Authorization":   userData.Token,
	}
	resp, err := c.doRequest(ctx, "GET", base+"/api/v1/getHomeDetail", nil, headers, nil)
	if err != nil {
		return 0, err
	}
	if int(asFloat(resp["code"])) != 200 {
		return 0, fmt.Errorf("get home id failed: %v", resp["msg"])
	}
	data, _ := resp["data"].(map[string]any)
	if data == nil {
		return 0, errors.New("missing home id")
	}
	return int64(asFloat(data["rrHomeId"])), nil
}

// GetHomeData fetches the home's devices and products over the IoT API,
// signed with the account's Hawk credentials.
func (c *APIClient) GetHomeData(ctx context.Context, userData *UserData) (*HomeData, error) {
	if userData == nil {
		return nil, errors.New("userData required")
	}
	homeID, err := c.GetHomeID(ctx, userData)
	if err != nil {
		return nil, err
	}
	base := userData.RRIOT.R.A
	if base == "" {
		return nil, errors.New("missing rriot base url")
	}
	path := fmt.Sprintf("/v3/user/homes/%d", homeID)
	headers := map[string]string{
		"Authorization": hawkAuth(userData.RRIOT, path, nil, nil),
	}
	resp, err := c.doRequest(ctx, "GET", base+path, nil, headers, nil)
	if err != nil {
		return nil, err
	}
	if success, _ := resp["success"].(bool); !success {
		return nil, fmt.Errorf("home data failed: %v", resp)
	}
	resultBytes, err := json.Marshal(resp["result"])
	if err != nil {
		return nil, err
	}
	var home HomeData
	if err := json.Unmarshal(resultBytes, &home); err != nil {
		return nil, err
	}
	return &home, nil
}

func (c *APIClient) headerClientID() string {
	md5sum := md5Bytes(append([]byte(c.username), []byte(c.clientID)...))
	return base64.StdEncoding.EncodeToString(md5sum)
}

func (c *APIClient) doRequest(ctx context.Context, method, rawURL string, params map[string]string, headers map[string]string, form map[string]string) (map[string]any, error) {
	urlObj, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if params != nil {
		q := urlObj.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		urlObj.RawQuery = q.Encode()
	}

	var body io.Reader
	if form != nil {
		vals := url.Values{}
		for k, v := range form {
			vals.Set(k, v)
		}
		body = strings.NewReader(vals.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, urlObj.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func randomAlphaNumeric(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = letters[rand.Intn(len(letters))]
	}
	return string(buf)
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return math.NaN()
	}
}

func hawkAuth(rriot RRiot, urlPath string, formdata map[string]string, params map[string]string) string {
	ts := time.Now().Unix()
	nonce := randomAlphaNumeric(8)
	prestr := strings.Join([]string{
		rriot.U,
		rriot.S,
		nonce,
		strconv.FormatInt(ts, 10),
		md5Hex([]byte(urlPath)),
		hawkExtra(params),
		hawkExtra(formdata),
	}, ":")
	mac := base64.StdEncoding.EncodeToString(hmacSha256([]byte(rriot.H), []byte(prestr)))
	return fmt.Sprintf("Hawk id=\"%s\",s=\"%s\",ts=\"%d\",nonce=\"%s\",mac=\"%s\"", rriot.U, rriot.S, ts, nonce, mac)
}

func hawkExtra(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, values[k]))
	}
	return md5Hex([]byte(strings.Join(parts, "&")))
}
