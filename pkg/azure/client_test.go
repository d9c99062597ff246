package azure

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fakeClient(run func(ctx context.Context, name string, args ...string) ([]byte, error)) *Client {
	c := NewClient("https://dev.azure.com/acme", "WebShop", "WebShop Team")
	c.runCommand = run
	return c
}

func TestGetSprints_ParsesOutput(t *testing.T) {
	var gotArgs []string
	c := fakeClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name != "az" {
			t.Errorf("command = %q, want az", name)
		}
		gotArgs = args
		return []byte(`[
			{"id":"s1","name":"Sprint 1","path":"WebShop\\Sprint 1","attributes":{"timeFrame":"past"}},
			{"id":"s2","name":"Sprint 2","path":"WebShop\\Sprint 2","attributes":{"timeFrame":"current"}}
		]`), nil
	})

	sprints, err := c.GetSprints(context.Background())
	if err != nil {
		t.Fatalf("GetSprints failed: %v", err)
	}
	if len(sprints) != 2 {
		t.Fatalf("got %d sprints, want 2", len(sprints))
	}
	if !sprints[1].IsCurrent() {
		t.Errorf("sprint 2 should be current")
	}

	joined := fmt.Sprint(gotArgs)
	for _, want := range []string{"boards", "iteration", "--team", "--org", "--output"} {
		found := false
		for _, a := range gotArgs {
			if a == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}

func TestGetSprintWorkItems_ParsesFields(t *testing.T) {
	c := fakeClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`[
			{"id":10,"rev":3,"fields":{
				"System.Title":"Fix bug","System.State":"New","System.WorkItemType":"Bug",
				"System.AssignedTo":{"displayName":"Alice","uniqueName":"alice@acme.com"},
				"System.Parent":7
			}}
		]`), nil
	})

	items, err := c.GetSprintWorkItems(context.Background(), "WebShop\\Sprint 2")
	if err != nil {
		t.Fatalf("GetSprintWorkItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	wi := items[0]
	if wi.ID != 10 || wi.Fields.Title != "Fix bug" || wi.Fields.State != "New" {
		t.Errorf("decoded fields wrong: %+v", wi)
	}
	if wi.Fields.ParentID == nil || *wi.Fields.ParentID != 7 {
		t.Errorf("ParentID = %v, want 7", wi.Fields.ParentID)
	}
	if wi.Fields.AssignedTo == nil || wi.Fields.AssignedTo.DisplayName != "Alice" {
		t.Errorf("AssignedTo = %v, want Alice", wi.Fields.AssignedTo)
	}
}

func TestExec_AuthFailureMessage(t *testing.T) {
	c := fakeClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("ERROR: Please run 'az login' to setup account.")
	})

	_, err := c.GetSprints(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Kind != ErrCommand {
		t.Errorf("Kind = %v, want ErrCommand", fe.Kind)
	}
	if want := "Azure CLI not authenticated"; len(fe.Message) < len(want) || fe.Message[:len(want)] != want {
		t.Errorf("Message = %q, want prefix %q", fe.Message, want)
	}
}

func TestExec_TimeoutMapsToTimeoutError(t *testing.T) {
	c := fakeClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c.Timeout = 10 * time.Millisecond

	_, err := c.GetSprints(context.Background())
	if !IsTimeout(err) {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestExec_MalformedJSONIsParseError(t *testing.T) {
	c := fakeClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("not json"), nil
	})

	_, err := c.GetSprints(context.Background())
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Kind != ErrParse {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestUpdateWorkItem_RejectsUnknownField(t *testing.T) {
	c := fakeClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatalf("runCommand should not be called for an unknown field")
		return nil, nil
	})

	if _, err := c.UpdateWorkItem(context.Background(), 1, "priority", "2"); err == nil {
		t.Errorf("expected error for unknown field")
	}
}

func TestGetCommitTitle_FirstLineOnly(t *testing.T) {
	c := fakeClient(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(`{"comment":"Fix checkout flow\n\nLonger body here"}`), nil
	})

	title, err := c.GetCommitTitle(context.Background(), "repo-guid", "abc123")
	if err != nil {
		t.Fatalf("GetCommitTitle failed: %v", err)
	}
	if title != "Fix checkout flow" {
		t.Errorf("title = %q, want first line", title)
	}
}
