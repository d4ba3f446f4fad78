package preview

import (
	"testing"

	"github.com/unkn0wn-root/commandpost/internal/auth"
	"github.com/unkn0wn-root/commandpost/internal/body"
	"github.com/unkn0wn-root/commandpost/internal/kv"
)

func rawBody(text string) body.Spec {
	spec := body.NewSpec()
	spec.Raw = text
	return spec
}

func TestCommand(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{
			name: "get with params",
			in: Input{
				Method: "get",
				Path:   "/users/{id}/posts",
				Params: kv.FromPairs(kv.Pair{Key: "page", Value: "2"}),
			},
			want: `cli users posts --page "2"`,
		},
		{
			name: "post with bearer and body",
			in: Input{
				Method:  "POST",
				Path:    "/users",
				Headers: kv.FromPairs(kv.Pair{Key: "X-Trace", Value: "abc"}),
				Auth:    auth.NewConfig(auth.Bearer{Token: "t0k"}),
				Body:    rawBody(`{"name":"O'Brien"}`),
			},
			want: `cli users create --token "t0k" --header "X-Trace=abc" --body '{"name":"O'\''Brien"}'`,
		},
		{
			name: "put with basic",
			in: Input{
				Method: "PUT",
				Path:   "https://api.example.com/v1/items/{id}?x=1",
				Auth:   auth.NewConfig(auth.Basic{Username: "u", Password: "p"}),
				Body:   rawBody("{}"),
			},
			want: `cli v1 items update --user "u:p"`,
		},
		{
			name: "delete ignores body",
			in: Input{
				Method: "DELETE",
				Path:   "/items/{id}",
				Body:   rawBody(`{"force":true}`),
			},
			want: `cli items delete`,
		},
		{
			name: "patch has no action word",
			in: Input{
				Binary: "devicectl",
				Method: "PATCH",
				Path:   "/items",
				Body:   rawBody(`{"a":1}`),
			},
			want: `devicectl items --body '{"a":1}'`,
		},
		{
			name: "empty bearer token omitted",
			in: Input{
				Method: "GET",
				Path:   "/",
				Auth:   auth.NewConfig(auth.Bearer{}),
			},
			want: `cli`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Command(tt.in); got != tt.want {
				t.Fatalf("Command() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandSkipsDisabledEntries(t *testing.T) {
	params := kv.FromPairs(kv.Pair{Key: "a", Value: "1"}, kv.Pair{Key: "b", Value: "2"})
	entries := params.Entries()
	params.SetEnabled(entries[0].ID, false)

	got := Command(Input{Method: "GET", Path: "/x", Params: params})
	if got != `cli x --b "2"` {
		t.Fatalf("unexpected command %q", got)
	}
}
