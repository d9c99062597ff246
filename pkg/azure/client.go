// Package azure wraps the az CLI: it builds structured argument lists,
// runs the subprocess with a timeout, and parses the JSON it prints.
// All authentication is delegated to az itself.
package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/GappelSolutions/lazyops/pkg/model"
)

// DefaultTimeout bounds a single az invocation.
const DefaultTimeout = 30 * time.Second

// FetchErrorKind distinguishes transport failures from timeouts.
type FetchErrorKind int

// Fetch error kinds.
const (
	ErrCommand FetchErrorKind = iota
	ErrTimeout
	ErrParse
)

// FetchError is the typed failure returned by every client call.
type FetchError struct {
	Kind    FetchErrorKind
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == ErrTimeout
}

// Client invokes the az CLI for one organization/project/team triple.
type Client struct {
	Organization string
	Project      string
	Team         string
	Timeout      time.Duration

	// For testing: allow overriding command execution.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewClient creates a client with the default timeout.
func NewClient(organization, project, team string) *Client {
	return &Client{
		Organization: organization,
		Project:      project,
		Team:         team,
		Timeout:      DefaultTimeout,
		runCommand:   runAz,
	}
}

func runAz(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s", msg)
		}
		return nil, err
	}
	return []byte(stdout.String()), nil
}

// exec runs az with the given args plus org/project/output flags and
// decodes the JSON stdout into out.
func (c *Client) exec(ctx context.Context, out any, args ...string) error {
	full := append(args, "--org", c.Organization, "--project", c.Project, "--output", "json")
	return c.execRaw(ctx, out, full...)
}

// execNoProject runs az without the --project flag; a few work-item
// subcommands reject it.
func (c *Client) execNoProject(ctx context.Context, out any, args ...string) error {
	full := append(args, "--org", c.Organization, "--output", "json")
	return c.execRaw(ctx, out, full...)
}

func (c *Client) execRaw(ctx context.Context, out any, args ...string) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := c.runCommand(cmdCtx, "az", args...)
	if err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return &FetchError{Kind: ErrTimeout, Message: "az request timed out", Err: err}
		}
		msg := err.Error()
		switch {
		case strings.Contains(msg, "az login"), strings.Contains(msg, "login"):
			return &FetchError{Kind: ErrCommand, Message: "Azure CLI not authenticated. Run: az login", Err: err}
		case strings.Contains(msg, "not found"), strings.Contains(msg, "does not exist"):
			return &FetchError{Kind: ErrCommand, Message: "Project/team not found. Check config.toml settings.", Err: err}
		default:
			return &FetchError{Kind: ErrCommand, Message: "az command failed", Err: err}
		}
	}

	if err := json.Unmarshal(output, out); err != nil {
		return &FetchError{Kind: ErrParse, Message: "failed to parse az output", Err: err}
	}
	return nil
}

// wiqlFields is the field list every board query selects. The ORDER BY
// clause defines the arrival order the hierarchy builder preserves.
const wiqlFields = "[System.Id], [System.Title], [System.State], [System.WorkItemType], " +
	"[System.AssignedTo], [System.Parent], [System.Description], [System.IterationPath], " +
	"[System.Tags], [Microsoft.VSTS.Scheduling.RemainingWork], " +
	"[Microsoft.VSTS.Scheduling.OriginalEstimate], [Microsoft.VSTS.Scheduling.CompletedWork]"

// GetSprints lists the team's iterations.
func (c *Client) GetSprints(ctx context.Context) ([]model.Sprint, error) {
	var sprints []model.Sprint
	err := c.exec(ctx, &sprints, "boards", "iteration", "team", "list", "--team", c.Team)
	if err != nil {
		return nil, err
	}
	return sprints, nil
}

// GetSprintWorkItems fetches the flat work-item list for an iteration
// path, ordered by type then title. The caller builds the hierarchy.
func (c *Client) GetSprintWorkItems(ctx context.Context, iterationPath string) ([]model.WorkItem, error) {
	wiql := fmt.Sprintf(
		"SELECT %s FROM WorkItems WHERE [System.IterationPath] = '%s' ORDER BY [System.WorkItemType], [System.Title]",
		wiqlFields, iterationPath)

	var items []model.WorkItem
	if err := c.exec(ctx, &items, "boards", "query", "--wiql", wiql); err != nil {
		return nil, err
	}
	return items, nil
}

// GetWorkItem fetches a single work item with its relations expanded.
func (c *Client) GetWorkItem(ctx context.Context, id int) (*model.WorkItem, error) {
	var item model.WorkItem
	err := c.execNoProject(ctx, &item,
		"boards", "work-item", "show", "--id", strconv.Itoa(id), "--expand", "relations")
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateWorkItem sets a single field (state, title or assigned-to) on a
// work item and returns the updated record.
func (c *Client) UpdateWorkItem(ctx context.Context, id int, field, value string) (*model.WorkItem, error) {
	var flag string
	switch field {
	case "state":
		flag = "--state"
	case "title":
		flag = "--title"
	case "assigned-to":
		flag = "--assigned-to"
	default:
		return nil, &FetchError{Kind: ErrCommand, Message: fmt.Sprintf("unknown field: %s", field)}
	}

	var item model.WorkItem
	err := c.execNoProject(ctx, &item,
		"boards", "work-item", "update", "--id", strconv.Itoa(id), flag, value)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetPullRequestTitle fetches the title of a pull request by id.
func (c *Client) GetPullRequestTitle(ctx context.Context, prID string) (string, error) {
	var pr struct {
		Title string `json:"title"`
	}
	err := c.execNoProject(ctx, &pr, "repos", "pr", "show", "--id", prID)
	if err != nil {
		return "", err
	}
	return pr.Title, nil
}

// GetCommitTitle fetches the first line of a commit message via the
// generic devops invoke endpoint.
func (c *Client) GetCommitTitle(ctx context.Context, repoID, hash string) (string, error) {
	var commit struct {
		Comment string `json:"comment"`
	}
	err := c.execNoProject(ctx, &commit,
		"devops", "invoke", "--area", "git", "--resource", "commits",
		"--route-parameters",
		"project="+c.Project, "repositoryId="+repoID, "commitId="+hash)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(commit.Comment, '\n'); i >= 0 {
		return commit.Comment[:i], nil
	}
	return commit.Comment, nil
}

// GetCurrentUser returns the signed-in account's user name.
func (c *Client) GetCurrentUser(ctx context.Context) (string, error) {
	var account struct {
		User struct {
			Name string `json:"name"`
		} `json:"user"`
	}
	if err := c.execRaw(ctx, &account, "account", "show", "--output", "json"); err != nil {
		return "", err
	}
	return account.User.Name, nil
}
