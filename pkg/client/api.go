package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/benchvault/benchvault/internal/apperrors"
	"github.com/benchvault/benchvault/internal/models"
)

// APIClient implements Storage against a remote BenchVault server. Login
// persists the token pair and base URL in the platform keyring; every
// request attaches the access token and, on a 401, refreshes it once and
// retries before giving up.
type APIClient struct {
	httpClient *http.Client
	tokens     *tokenStore
	baseURL    string
}

// NewAPIClient opens the keyring and restores the persisted base URL.
func NewAPIClient() (*APIClient, error) {
	tokens, err := openTokenStore()
	if err != nil {
		return nil, err
	}
	baseURL, err := tokens.Get(slotBaseURL)
	if err != nil {
		return nil, err
	}
	return &APIClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tokens:     tokens,
		baseURL:    baseURL,
	}, nil
}

// SetURL persists the server base URL for this and future processes.
func (c *APIClient) SetURL(baseURL string) error {
	c.baseURL = baseURL
	return c.tokens.Set(slotBaseURL, baseURL)
}

// Signup registers a new user account.
func (c *APIClient) Signup(ctx context.Context, username, password string) error {
	body := models.UserCredentials{Username: username, Password: password}
	return c.postJSON(ctx, "/access/signup", body, nil)
}

// Login authenticates and persists the token pair in the keyring.
func (c *APIClient) Login(ctx context.Context, username, password string) error {
	body := models.UserCredentials{Username: username, Password: password}
	var pair models.TokenPair
	// Login runs without a token; doRaw skips the refresh dance.
	if err := c.doRaw(ctx, http.MethodPost, "/access/users/token", jsonBody(body), "application/json", &pair, false); err != nil {
		return err
	}
	if err := c.tokens.Set(slotAccess, pair.AccessToken.Token); err != nil {
		return err
	}
	return c.tokens.Set(slotRefresh, pair.RefreshToken.Token)
}

// Logout drops the persisted tokens.
func (c *APIClient) Logout() error {
	if err := c.tokens.Clear(slotAccess); err != nil {
		return err
	}
	return c.tokens.Clear(slotRefresh)
}

// refreshAccessToken trades the stored refresh token for a new access
// token and persists it.
func (c *APIClient) refreshAccessToken(ctx context.Context) error {
	refresh, err := c.tokens.Get(slotRefresh)
	if err != nil {
		return err
	}
	if refresh == "" {
		return apperrors.Unauthorized("not logged in")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/access/users/refresh-token", nil)
	if err != nil {
		return apperrors.Storage("build request failed", err)
	}
	req.Header.Set("Authorization", "Bearer "+refresh)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Storage("refresh request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var token models.Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return apperrors.Storage("decode refresh response failed", err)
	}
	return c.tokens.Set(slotAccess, token.Token)
}

// do performs an authenticated request, transparently refreshing the
// access token once when the server answers 401.
func (c *APIClient) do(ctx context.Context, method, path string, body func() (io.Reader, string), out any) error {
	reader, contentType := body()
	err := c.doRaw(ctx, method, path, reader, contentType, out, true)
	if !isUnauthorized(err) {
		return err
	}
	if err := c.refreshAccessToken(ctx); err != nil {
		return err
	}
	reader, contentType = body()
	return c.doRaw(ctx, method, path, reader, contentType, out, true)
}

func (c *APIClient) doRaw(ctx context.Context, method, path string, body io.Reader, contentType string, out any, withToken bool) error {
	if c.baseURL == "" {
		return apperrors.Validation("no server URL configured; call SetURL first")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.Storage("build request failed", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if withToken {
		token, err := c.tokens.Get(slotAccess)
		if err != nil {
			return err
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Storage("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return apperrors.Storage("read response failed", err)
		}
		*raw = data
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Storage("decode response failed", err)
	}
	return nil
}

// postJSON is the common authenticated JSON POST.
func (c *APIClient) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, func() (io.Reader, string) {
		return jsonBody(body), "application/json"
	}, out)
}

func (c *APIClient) putEmpty(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPut, path, emptyBody, nil)
}

func (c *APIClient) deleteEmpty(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, emptyBody, nil)
}

func emptyBody() (io.Reader, string) {
	return nil, ""
}

func jsonBody(v any) io.Reader {
	data, err := json.Marshal(v)
	if err != nil {
		return bytes.NewReader(nil)
	}
	return bytes.NewReader(data)
}

// filterBody serializes an optional filter tree; nil becomes null.
func filterBody(filter *models.Filter) func() (io.Reader, string) {
	return func() (io.Reader, string) {
		return jsonBody(filter), "application/json"
	}
}

func isUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	return apperrors.As(err).Kind == apperrors.KindUnauthorized
}

// responseError converts a non-200 response into a typed error from the
// {detail} body.
func responseError(resp *http.Response) error {
	var detail apperrors.Detail
	_ = json.NewDecoder(resp.Body).Decode(&detail)
	msg := detail.Detail
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusNotFound:
		return apperrors.NotFound(msg)
	case http.StatusConflict:
		return apperrors.Conflict(msg)
	case http.StatusUnprocessableEntity:
		return apperrors.Validation(msg)
	default:
		return apperrors.Storage(msg, nil)
	}
}

// --- Access operations ---

// CreateUser registers a user on behalf of an administrator.
func (c *APIClient) CreateUser(ctx context.Context, username, password string) error {
	body := models.UserCredentials{Username: username, Password: password}
	return c.postJSON(ctx, "/access/users/create", body, nil)
}

// DeleteUser removes a user by name.
func (c *APIClient) DeleteUser(ctx context.Context, username string) error {
	return c.deleteEmpty(ctx, "/access/users/delete?username="+url.QueryEscape(username))
}

// ChangePassword updates a user's password.
func (c *APIClient) ChangePassword(ctx context.Context, username, password string) error {
	body := models.UserCredentials{Username: username, Password: password}
	return c.do(ctx, http.MethodPut, "/access/users/change-password", func() (io.Reader, string) {
		return jsonBody(body), "application/json"
	}, nil)
}

// ListUsers returns every registered user.
func (c *APIClient) ListUsers(ctx context.Context) ([]models.UserOut, error) {
	var users []models.UserOut
	err := c.do(ctx, http.MethodGet, "/access/users/list", emptyBody, &users)
	return users, err
}

// CreateRole stores a role definition.
func (c *APIClient) CreateRole(ctx context.Context, role models.UserRole) error {
	return c.postJSON(ctx, "/access/roles/create", role, nil)
}

// DeleteRole removes a role by name.
func (c *APIClient) DeleteRole(ctx context.Context, name string) error {
	return c.deleteEmpty(ctx, "/access/roles/delete?role_name="+url.QueryEscape(name))
}

// ListRoles returns every role definition.
func (c *APIClient) ListRoles(ctx context.Context) ([]models.UserRole, error) {
	var roles []models.UserRole
	err := c.do(ctx, http.MethodGet, "/access/roles/list", emptyBody, &roles)
	return roles, err
}

// CreateGroup stores a new publication scope.
func (c *APIClient) CreateGroup(ctx context.Context, group models.Group) error {
	return c.postJSON(ctx, "/access/groups/create", group, nil)
}

// DeleteGroup removes a group by name.
func (c *APIClient) DeleteGroup(ctx context.Context, name string) error {
	return c.deleteEmpty(ctx, "/access/groups/delete?group_name="+url.QueryEscape(name))
}

// ListGroups returns the groups visible to the caller.
func (c *APIClient) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := c.do(ctx, http.MethodGet, "/access/groups/list", emptyBody, &groups)
	return groups, err
}

// ReadGroup returns a group with its members.
func (c *APIClient) ReadGroup(ctx context.Context, name string) (*models.GroupWithMembers, error) {
	var group models.GroupWithMembers
	err := c.do(ctx, http.MethodGet, "/access/groups/read?group_name="+url.QueryEscape(name), emptyBody, &group)
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// AddGroupMembers sets users' role lists within a group.
func (c *APIClient) AddGroupMembers(ctx context.Context, query models.GroupMembershipQuery) error {
	return c.postJSON(ctx, "/access/groups/add-members", query, nil)
}

// RemoveGroupMembers drops users' memberships in a group.
func (c *APIClient) RemoveGroupMembers(ctx context.Context, query models.GroupRemoveMembersQuery) error {
	return c.postJSON(ctx, "/access/groups/remove-members", query, nil)
}

// --- Benchmark operations ---

// StoreBenchmark uploads a benchmark definition.
func (c *APIClient) StoreBenchmark(ctx context.Context, query models.BenchmarkQuery) (*models.BenchmarkHeader, error) {
	var header models.BenchmarkHeader
	if err := c.postJSON(ctx, "/benchmarks/create", query, &header); err != nil {
		return nil, err
	}
	return &header, nil
}

// LoadBenchmark fetches a full benchmark including its payload.
func (c *APIClient) LoadBenchmark(ctx context.Context, id string) (*models.Benchmark, error) {
	var bench models.Benchmark
	err := c.do(ctx, http.MethodGet, "/benchmarks/load?benchmark_id="+url.QueryEscape(id), emptyBody, &bench)
	if err != nil {
		return nil, err
	}
	return &bench, nil
}

// ListBenchmarks returns headers matching the filter.
func (c *APIClient) ListBenchmarks(ctx context.Context, filter *models.Filter) ([]models.BenchmarkHeader, error) {
	var headers []models.BenchmarkHeader
	err := c.do(ctx, http.MethodPost, "/benchmarks/list", filterBody(filter), &headers)
	return headers, err
}

// DeleteBenchmark removes a benchmark (and, server-side, its episodes).
func (c *APIClient) DeleteBenchmark(ctx context.Context, id string) error {
	return c.deleteEmpty(ctx, "/benchmarks/delete?benchmark_id="+url.QueryEscape(id))
}

// DeleteBenchmarkWithArtifacts removes a benchmark and the artifacts its
// serialized form references. Artifact extraction happens client-side;
// the server exposes no such cascade.
func (c *APIClient) DeleteBenchmarkWithArtifacts(ctx context.Context, id string) error {
	bench, err := c.LoadBenchmark(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return c.DeleteBenchmark(ctx, id)
		}
		return err
	}
	for _, artifactID := range extractArtifactIDs(bench.Serialized) {
		if err := c.DeleteArtifact(ctx, artifactID); err != nil {
			return err
		}
	}
	return c.DeleteBenchmark(ctx, id)
}

// PublishBenchmark adds the benchmark to a publication scope.
func (c *APIClient) PublishBenchmark(ctx context.Context, id, group string) error {
	return c.putEmpty(ctx, "/benchmarks/publish?benchmark_id="+url.QueryEscape(id)+"&publish_in="+url.QueryEscape(group))
}

// UnpublishBenchmark removes the benchmark from a publication scope.
func (c *APIClient) UnpublishBenchmark(ctx context.Context, id, group string) error {
	return c.putEmpty(ctx, "/benchmarks/unpublish?benchmark_id="+url.QueryEscape(id)+"&unpublish_from="+url.QueryEscape(group))
}

// --- Artifact operations ---

// StoreArtifact uploads a blob as multipart form data.
func (c *APIClient) StoreArtifact(ctx context.Context, data []byte, metadata models.ArtifactMetadata) (*models.ArtifactMetadataItem, error) {
	build := func() (io.Reader, string) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("data", metadata.Name)
		if err != nil {
			return bytes.NewReader(nil), writer.FormDataContentType()
		}
		_, _ = part.Write(data)
		meta, _ := json.Marshal(metadata)
		_ = writer.WriteField("metadata", string(meta))
		_ = writer.Close()
		return &buf, writer.FormDataContentType()
	}

	var item models.ArtifactMetadataItem
	if err := c.do(ctx, http.MethodPost, "/artifacts/upload", build, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// LoadArtifact downloads the raw blob bytes.
func (c *APIClient) LoadArtifact(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := c.do(ctx, http.MethodGet, "/artifacts/download?artifact_id="+url.QueryEscape(id), emptyBody, &data)
	return data, err
}

// ListArtifacts returns metadata items matching the filter.
func (c *APIClient) ListArtifacts(ctx context.Context, filter *models.Filter) ([]models.ArtifactMetadataItem, error) {
	var items []models.ArtifactMetadataItem
	err := c.do(ctx, http.MethodPost, "/artifacts/list", filterBody(filter), &items)
	return items, err
}

// DeleteArtifact removes an artifact.
func (c *APIClient) DeleteArtifact(ctx context.Context, id string) error {
	return c.deleteEmpty(ctx, "/artifacts/delete?artifact_id="+url.QueryEscape(id))
}

// PublishArtifact adds the artifact to a publication scope.
func (c *APIClient) PublishArtifact(ctx context.Context, id, group string) error {
	return c.putEmpty(ctx, "/artifacts/publish?artifact_id="+url.QueryEscape(id)+"&publish_in="+url.QueryEscape(group))
}

// UnpublishArtifact removes the artifact from a publication scope.
func (c *APIClient) UnpublishArtifact(ctx context.Context, id, group string) error {
	return c.putEmpty(ctx, "/artifacts/unpublish?artifact_id="+url.QueryEscape(id)+"&unpublish_from="+url.QueryEscape(group))
}

// --- Episode operations ---

// RecordEpisode uploads an episode with its full tuple list.
func (c *APIClient) RecordEpisode(ctx context.Context, query models.EpisodeQuery) (*models.EpisodeHeader, error) {
	var header models.EpisodeHeader
	if err := c.postJSON(ctx, "/episodes/record", query, &header); err != nil {
		return nil, err
	}
	return &header, nil
}

// ListEpisodes returns episodes matching the filter. The filter fields
// ride at the top level of the body next to include_tuples.
func (c *APIClient) ListEpisodes(ctx context.Context, filter *models.Filter, includeTuples bool) ([]models.EpisodeItem, error) {
	query := models.EpisodeListQuery{IncludeTuples: includeTuples}
	if filter != nil {
		query.Type = filter.Type
		query.Key = filter.Key
		query.Value = filter.Value
		query.Filters = filter.Filters
	}

	var episodes []models.EpisodeItem
	err := c.do(ctx, http.MethodPost, "/episodes/list", func() (io.Reader, string) {
		return jsonBody(query), "application/json"
	}, &episodes)
	return episodes, err
}

// DeleteEpisode removes an episode.
func (c *APIClient) DeleteEpisode(ctx context.Context, id string) error {
	return c.deleteEmpty(ctx, "/episodes/delete?episode_id="+url.QueryEscape(id))
}

// PublishEpisode adds the episode to a publication scope.
func (c *APIClient) PublishEpisode(ctx context.Context, id, group string) error {
	return c.putEmpty(ctx, "/episodes/publish?episode_id="+url.QueryEscape(id)+"&publish_in="+url.QueryEscape(group))
}

// UnpublishEpisode removes the episode from a publication scope.
func (c *APIClient) UnpublishEpisode(ctx context.Context, id, group string) error {
	return c.putEmpty(ctx, "/episodes/unpublish?episode_id="+url.QueryEscape(id)+"&unpublish_from="+url.QueryEscape(group))
}

// extractArtifactIDs walks a serialized environment for artifact_id
// string values, wherever they nest.
func extractArtifactIDs(serialized string) []string {
	var doc any
	if err := json.Unmarshal([]byte(serialized), &doc); err != nil {
		return nil
	}
	var ids []string
	var walk func(node any)
	walk = func(node any) {
		switch v := node.(type) {
		case map[string]any:
			for key, value := range v {
				if key == "artifact_id" {
					if id, ok := value.(string); ok {
						ids = append(ids, id)
					}
					continue
				}
				walk(value)
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(doc)
	return ids
}

var _ Storage = (*APIClient)(nil)
