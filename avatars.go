package avatarsdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Avatar is an avatar profile managed through the platform API.
type Avatar struct {
	ID           string `json:"id"`
	Slug         string `json:"slug,omitempty"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	VoiceID      string `json:"voice_id,omitempty"`
	ModelID      string `json:"model_id,omitempty"`
	PortraitURL  string `json:"portrait_url,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// ListAvatarsResponse is the response for listing avatars.
type ListAvatarsResponse struct {
	Object string    `json:"object"`
	Data   []*Avatar `json:"data"`
}

// CreateAvatarParams are the parameters for creating an avatar. When
// Portrait is non-nil the request is sent as multipart form data with the
// portrait image attached.
type CreateAvatarParams struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	VoiceID      string `json:"voice_id,omitempty"`
	ModelID      string `json:"model_id,omitempty"`

	Portrait         io.Reader `json:"-"`
	PortraitFilename string    `json:"-"`
}

// DeleteAvatarResponse is the response for deleting an avatar.
type DeleteAvatarResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// ListAvatars returns all avatars available to the API key.
func (c *Client) ListAvatars(ctx context.Context) ([]*Avatar, error) {
	var resp ListAvatarsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/avatars", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetAvatar returns one avatar by id.
func (c *Client) GetAvatar(ctx context.Context, id string) (*Avatar, error) {
	var avatar Avatar
	if err := c.do(ctx, http.MethodGet, "/v1/avatars/"+url.PathEscape(id), nil, &avatar); err != nil {
		return nil, err
	}
	return &avatar, nil
}

// CreateAvatar creates a new avatar profile.
func (c *Client) CreateAvatar(ctx context.Context, params CreateAvatarParams) (*Avatar, error) {
	var avatar Avatar
	if params.Portrait == nil {
		if err := c.do(ctx, http.MethodPost, "/v1/avatars", params, &avatar); err != nil {
			return nil, err
		}
		return &avatar, nil
	}

	body, contentType, err := buildAvatarForm(params)
	if err != nil {
		return nil, err
	}
	if err := c.doRaw(ctx, http.MethodPost, "/v1/avatars", body, contentType, &avatar); err != nil {
		return nil, err
	}
	return &avatar, nil
}

// DeleteAvatar removes an avatar profile.
func (c *Client) DeleteAvatar(ctx context.Context, id string) (*DeleteAvatarResponse, error) {
	var resp DeleteAvatarResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/avatars/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// buildAvatarForm assembles the multipart body for avatar creation with a
// portrait image. The form is buffered in memory; portraits are small.
func buildAvatarForm(params CreateAvatarParams) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"name":          params.Name,
		"system_prompt": params.SystemPrompt,
		"voice_id":      params.VoiceID,
		"model_id":      params.ModelID,
	}
	for field, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(field, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", field, err)
		}
	}

	filename := params.PortraitFilename
	if filename == "" {
		filename = "portrait.png"
	}
	part, err := writer.CreateFormFile("portrait", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, params.Portrait); err != nil {
		return nil, "", fmt.Errorf("copy portrait: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
