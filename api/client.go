package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jmorganca/seqprep/envconfig"
)

type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(base *url.URL, hc *http.Client) *Client {
	return &Client{base: base, http: hc}
}

// ClientFromEnvironment dials SEQPREP_HOST.
func ClientFromEnvironment() (*Client, error) {
	hostport, err := envconfig.HostPort()
	if err != nil {
		return nil, err
	}

	return NewClient(&url.URL{Scheme: "http", Host: hostport}, http.DefaultClient), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqData, respData any) error {
	var body io.Reader
	if reqData != nil {
		bts, err := json.Marshal(reqData)
		if err != nil {
			return err
		}

		body = bytes.NewReader(bts)
	}

	requestURL := c.base.JoinPath(path)
	requestURL.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), body)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	bts, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode >= http.StatusBadRequest {
		apiError := StatusError{StatusCode: response.StatusCode}
		if err := json.Unmarshal(bts, &apiError); err != nil {
			apiError.ErrorMessage = string(bts)
		}

		return apiError
	}

	if respData != nil {
		if err := json.Unmarshal(bts, respData); err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
	}

	return nil
}

func (c *Client) Encode(ctx context.Context, req *EncodeRequest) (*EncodeResponse, error) {
	var resp EncodeResponse
	if err := c.do(ctx, http.MethodPost, "/api/encode", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Decode(ctx context.Context, req *DecodeRequest) (*DecodeResponse, error) {
	var resp DecodeResponse
	if err := c.do(ctx, http.MethodPost, "/api/decode", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Batches(ctx context.Context, req *BatchesRequest) (*BatchesResponse, error) {
	var resp BatchesResponse
	if err := c.do(ctx, http.MethodPost, "/api/batches", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Vocab(ctx context.Context, side Side) (*VocabResponse, error) {
	var resp VocabResponse
	if err := c.do(ctx, http.MethodGet, "/api/vocab", url.Values{"side": {string(side)}}, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var resp VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}
