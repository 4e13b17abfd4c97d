package arena

import (
	"context"
	"strings"
)

type createThreadRequest struct {
	Content     string   `json:"content"`
	Files       []string `json:"files"`
	PrivacyType int      `json:"privacyType"`
}

// Post publishes content to the agent's public feed. Newlines become <br>.
func (c *Client) Post(ctx context.Context, content string) error {
	return c.post(ctx, "/agents/threads", createThreadRequest{
		Content:     strings.ReplaceAll(content, "\n", "<br>"),
		Files:       []string{},
		PrivacyType: 0,
	}, nil)
}
