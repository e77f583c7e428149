package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/smith3v/wx-reminder/pkg/config"
	"github.com/smith3v/wx-reminder/pkg/logger"
)

const (
	defaultWeChatAPIBase = "https://api.weixin.qq.com"

	// Access tokens are valid for two hours; refresh five minutes early so
	// an in-flight send never races the expiry.
	tokenEarlyRefresh = 5 * time.Minute
)

// WeChatSender sends mini-program subscribe messages. It owns its access
// token cache; construct one at process start and pass it by reference.
type WeChatSender struct {
	appID      string
	appSecret  string
	templateID string
	page       string

	apiBase string
	client  *http.Client
	now     func() time.Time

	mu             sync.Mutex
	token          string
	tokenExpiresAt time.Time
}

func NewWeChatSender(cfg config.WeChatConfig, timeout time.Duration, now func() time.Time) *WeChatSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = defaultWeChatAPIBase
	}
	return &WeChatSender{
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		templateID: cfg.TemplateID,
		page:       cfg.Page,
		apiBase:    apiBase,
		client:     &http.Client{Timeout: timeout},
		now:        now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

// accessToken returns the cached token, fetching a fresh one when the cache
// is empty or about to expire. Callers racing a refresh serialize on the
// mutex so only one fetch goes out.
func (s *WeChatSender) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.tokenExpiresAt) {
		return s.token, nil
	}

	u := fmt.Sprintf("%s/cgi-bin/token?grant_type=client_credential&appid=%s&secret=%s",
		s.apiBase, url.QueryEscape(s.appID), url.QueryEscape(s.appSecret))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode access token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("fetch access token: errcode=%d errmsg=%q", body.ErrCode, body.ErrMsg)
	}

	expiresIn := time.Duration(body.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = 2 * time.Hour
	}
	s.token = body.AccessToken
	s.tokenExpiresAt = s.now().Add(expiresIn - tokenEarlyRefresh)
	logger.Info("refreshed wechat access token", "expires_in", expiresIn)
	return s.token, nil
}

type sendResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Send posts one subscribe message. data values go out wrapped in the
// template envelope WeChat expects ({"value": ...}).
func (s *WeChatSender) Send(ctx context.Context, recipient string, data map[string]string) Result {
	token, err := s.accessToken(ctx)
	if err != nil {
		return Result{ErrCode: -1, ErrMsg: err.Error()}
	}

	templateData := make(map[string]map[string]string, len(data))
	for field, value := range data {
		templateData[field] = map[string]string{"value": value}
	}
	payload := map[string]any{
		"touser":      recipient,
		"template_id": s.templateID,
		"page":        s.page,
		"data":        templateData,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{ErrCode: -1, ErrMsg: err.Error()}
	}

	u := fmt.Sprintf("%s/cgi-bin/message/subscribe/send?access_token=%s", s.apiBase, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return Result{ErrCode: -1, ErrMsg: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{ErrCode: -1, ErrMsg: err.Error()}
	}
	defer resp.Body.Close()

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{ErrCode: -1, ErrMsg: err.Error()}
	}
	if out.ErrCode != 0 {
		return Result{ErrCode: out.ErrCode, ErrMsg: out.ErrMsg}
	}
	return Result{Success: true}
}

type sessionResponse struct {
	OpenID     string `json:"openid"`
	SessionKey string `json:"session_key"`
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
}

// Code2Session exchanges a wx.login code for the user's openid.
func (s *WeChatSender) Code2Session(ctx context.Context, code string) (openid, sessionKey string, err error) {
	u := fmt.Sprintf("%s/sns/jscode2session?appid=%s&secret=%s&js_code=%s&grant_type=authorization_code",
		s.apiBase, url.QueryEscape(s.appID), url.QueryEscape(s.appSecret), url.QueryEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("code2session: %w", err)
	}
	defer resp.Body.Close()

	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("decode code2session response: %w", err)
	}
	if body.OpenID == "" {
		return "", "", fmt.Errorf("code2session: errcode=%d errmsg=%q", body.ErrCode, body.ErrMsg)
	}
	return body.OpenID, body.SessionKey, nil
}
