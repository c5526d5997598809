package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/oauth2"

	"ThreadSentinel/internal/model"
)

func TestFullname(t *testing.T) {
	tests := []struct{ in, want string }{
		{"abc123", "t3_abc123"},
		{"t3_abc123", "t3_abc123"},
		{"t1_xyz", "t1_xyz"},
	}
	for _, tt := range tests {
		if got := fullname(tt.in); got != tt.want {
			t.Errorf("fullname(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func apiError(status int, msg string) error {
	return &reddit.ErrorResponse{
		Response: &http.Response{
			StatusCode: status,
			Request:    httptest.NewRequest(http.MethodPost, "https://oauth.reddit.com/api/comment", nil),
		},
		Message: msg,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"token rejected", &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusUnauthorized}, Body: []byte("nope")}, ErrInvalidCredentials},
		{"invalid grant body", fmt.Errorf("oauth2: cannot fetch token: invalid_grant"), ErrInvalidCredentials},
		{"api 401", apiError(http.StatusUnauthorized, "Unauthorized"), ErrInvalidCredentials},
		{"suspended", apiError(http.StatusForbidden, "account suspended"), ErrAccountBanned},
		{"banned in text", errors.New("you are banned from this community"), ErrAccountBanned},
		{"rate limited", apiError(http.StatusTooManyRequests, "RATELIMIT"), nil},
		{"plain network error", errors.New("dial tcp: connection refused"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if got == nil {
				t.Fatal("classify must never swallow the error")
			}
			if tt.want == nil {
				if IsTerminal(got) {
					t.Errorf("expected transient error, got terminal %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSubmit_RejectsEmptyInput(t *testing.T) {
	p := NewRedditPoster("test-agent")
	if _, err := p.Submit(context.Background(), SubmitRequest{Text: "hello"}); err == nil {
		t.Error("expected error for empty discussion id")
	}
	if _, err := p.Submit(context.Background(), SubmitRequest{DiscussionID: "abc", Text: "  "}); err == nil {
		t.Error("expected error for blank text")
	}
}

const submittedComment = `{"id":"k2x9","name":"t1_k2x9","body":"Try a shared pipeline board.",
	"permalink":"/r/smallbusiness/comments/abc123/need_a_crm/k2x9/","parent_id":"t3_abc123"}`

// redditServer fakes the token and comment endpoints. It records every request
// it sees, including ones that reach it as a forward proxy.
type redditServer struct {
	mu           sync.Mutex
	hosts        []string
	tokenForm    map[string]string
	tokenClient  string
	commentForm  map[string]string
	bearer       string
	tokenStatus  int
	commentCode  int
	commentReply string
}

func (s *redditServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts = append(s.hosts, r.Host)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch r.URL.Path {
	case "/api/v1/access_token":
		id, _, _ := r.BasicAuth()
		s.tokenClient = id
		s.tokenForm = map[string]string{"grant_type": r.PostForm.Get("grant_type"), "username": r.PostForm.Get("username"), "password": r.PostForm.Get("password")}
		w.Header().Set("Content-Type", "application/json")
		if s.tokenStatus != 0 {
			w.WriteHeader(s.tokenStatus)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"tok-1","token_type":"bearer","expires_in":3600,"scope":"*"}`)
	case "/api/comment":
		s.bearer = r.Header.Get("Authorization")
		s.commentForm = map[string]string{"parent": r.PostForm.Get("parent"), "text": r.PostForm.Get("text")}
		w.Header().Set("Content-Type", "application/json")
		if s.commentCode != 0 {
			w.WriteHeader(s.commentCode)
		}
		fmt.Fprint(w, s.commentReply)
	default:
		http.NotFound(w, r)
	}
}

func testCredentials() model.Credentials {
	return model.Credentials{Username: "poster1", Password: "hunter2", ClientID: "app-id", ClientSecret: "app-secret"}
}

func TestSubmit_PostsThroughAccountProxy(t *testing.T) {
	fake := &redditServer{commentReply: submittedComment}
	proxy := httptest.NewServer(fake)
	defer proxy.Close()

	// reddit.test does not resolve, so the request only succeeds via the proxy.
	p := NewRedditPoster("test-agent").WithEndpoints("http://reddit.test/", "http://reddit.test/api/v1/access_token")
	res, err := p.Submit(context.Background(), SubmitRequest{
		Credentials:  testCredentials(),
		ProxyURL:     proxy.URL,
		DiscussionID: "abc123",
		Text:         "Try a shared pipeline board.",
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.CommentID != "k2x9" {
		t.Errorf("expected comment id k2x9, got %q", res.CommentID)
	}
	if want := "https://www.reddit.com/r/smallbusiness/comments/abc123/need_a_crm/k2x9/"; res.CommentURL != want {
		t.Errorf("expected comment url %s, got %s", want, res.CommentURL)
	}
	for _, h := range fake.hosts {
		if h != "reddit.test" {
			t.Errorf("expected proxied requests for reddit.test, got host %q", h)
		}
	}
	if fake.tokenClient != "app-id" || fake.tokenForm["grant_type"] != "password" ||
		fake.tokenForm["username"] != "poster1" || fake.tokenForm["password"] != "hunter2" {
		t.Errorf("unexpected token request: client=%q form=%v", fake.tokenClient, fake.tokenForm)
	}
	if !strings.EqualFold(fake.bearer, "Bearer tok-1") {
		t.Errorf("expected bearer token on comment request, got %q", fake.bearer)
	}
	if fake.commentForm["parent"] != "t3_abc123" || fake.commentForm["text"] != "Try a shared pipeline board." {
		t.Errorf("unexpected comment form %v", fake.commentForm)
	}
}

func TestSubmit_TerminalRejections(t *testing.T) {
	tests := []struct {
		name string
		fake *redditServer
		want error
	}{
		{"suspended account", &redditServer{commentCode: http.StatusForbidden, commentReply: `{"message":"account suspended"}`}, ErrAccountBanned},
		{"password rejected", &redditServer{tokenStatus: http.StatusUnauthorized}, ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.fake)
			defer srv.Close()

			p := NewRedditPoster("test-agent").WithEndpoints(srv.URL+"/", srv.URL+"/api/v1/access_token")
			_, err := p.Submit(context.Background(), SubmitRequest{Credentials: testCredentials(), DiscussionID: "abc123", Text: "hello"})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
