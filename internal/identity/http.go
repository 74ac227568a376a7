package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nutriplan/nutriplan-api/internal/config"
	"github.com/nutriplan/nutriplan-api/internal/model"
)

// httpProvisioner talks to the identity provider's admin REST API using the
// privileged service key.
type httpProvisioner struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

func NewHTTPProvisioner(cfg config.IdentityConfig) Provisioner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpProvisioner{
		baseURL:    cfg.BaseURL,
		serviceKey: cfg.ServiceKey,
		client:     &http.Client{Timeout: timeout},
	}
}

type createUserRequest struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

type userResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	UserMetadata struct {
		Name string `json:"name"`
	} `json:"user_metadata"`
}

type errorResponse struct {
	Message string `json:"msg"`
	Error   string `json:"error"`
}

func (p *httpProvisioner) CreateAccount(ctx context.Context, params CreateAccountParams) (*model.Account, error) {
	body := createUserRequest{
		Email:        params.Email,
		Password:     params.Password,
		EmailConfirm: params.EmailConfirm,
		AppMetadata:  map[string]interface{}{"role": string(params.Role)},
		UserMetadata: map[string]interface{}{"name": params.Name},
	}

	var user userResponse
	if err := p.do(ctx, http.MethodPost, "/admin/users", body, &user); err != nil {
		return nil, err
	}

	return &model.Account{
		ID:    user.ID,
		Email: user.Email,
		Role:  model.Role(user.AppMetadata.Role),
		Name:  user.UserMetadata.Name,
	}, nil
}

func (p *httpProvisioner) InviteByEmail(ctx context.Context, email, redirectTo string) error {
	body := map[string]string{
		"email":       email,
		"redirect_to": redirectTo,
	}
	return p.do(ctx, http.MethodPost, "/invite", body, nil)
}

func (p *httpProvisioner) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return p.do(ctx, http.MethodDelete, "/admin/users/"+id.String(), nil, nil)
}

func (p *httpProvisioner) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)
	req.Header.Set("apikey", p.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity {
			return ErrEmailExists
		}
		var apiErr errorResponse
		if json.Unmarshal(raw, &apiErr) == nil && (apiErr.Message != "" || apiErr.Error != "") {
			msg := apiErr.Message
			if msg == "" {
				msg = apiErr.Error
			}
			return fmt.Errorf("identity provider returned %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
