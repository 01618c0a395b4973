package youtrack

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Field projections sent with every request. YouTrack only returns the
// attributes named in `fields`.
const (
	userFields     = "id,login,fullName,email"
	projectFields  = "id,shortName,name"
	issueFields    = "id,idReadable,summary,created,updated,resolved,project(id,shortName,name),reporter(login,fullName),updater(login,fullName),parent(issues(id,idReadable)),customFields(name,value(login,fullName,name))"
	commentFields  = "id,text,created,author(login,fullName)"
	activityFields = "id,timestamp,author(login,fullName),category(id),field(name),added(id,login,name,fullName,text),removed(id,login,name,fullName,text)"
	workItemFields = "id,date,duration(minutes),author(login,fullName),text,issue(id,idReadable,summary)"
)

// DefaultActivityCategories are the activity categories the correlator reads.
var DefaultActivityCategories = []string{
	"CommentsCategory",
	"CustomFieldCategory",
	"IssueCreatedCategory",
	"SummaryCategory",
	"DescriptionCategory",
	"LinksCategory",
	"AttachmentsCategory",
	"WorkItemCategory",
}

// User represents a YouTrack user
type User struct {
	ID       string `json:"id,omitempty"`
	Login    string `json:"login"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Project represents a YouTrack project
type Project struct {
	ID        string `json:"id"`
	ShortName string `json:"shortName"`
	Name      string `json:"name"`
}

// IssueRef is a lightweight issue reference
type IssueRef struct {
	ID         string `json:"id"`
	IDReadable string `json:"idReadable"`
	Summary    string `json:"summary,omitempty"`
}

// CustomField is an issue custom field with its raw value
type CustomField struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Issue represents a YouTrack issue. Timestamps are epoch milliseconds.
type Issue struct {
	ID           string   `json:"id"`
	IDReadable   string   `json:"idReadable"`
	Summary      string   `json:"summary"`
	Project      *Project `json:"project,omitempty"`
	Reporter     *User    `json:"reporter,omitempty"`
	Updater      *User    `json:"updater,omitempty"`
	Created      *int64   `json:"created,omitempty"`
	Updated      *int64   `json:"updated,omitempty"`
	Resolved     *int64   `json:"resolved,omitempty"`
	Parent       *struct {
		Issues []IssueRef `json:"issues"`
	} `json:"parent,omitempty"`
	CustomFields []CustomField `json:"customFields,omitempty"`
}

// Assignee returns the user in the Assignee custom field, if any.
func (i Issue) Assignee() *User {
	for _, cf := range i.CustomFields {
		if !strings.EqualFold(cf.Name, "Assignee") {
			continue
		}
		var u User
		if err := json.Unmarshal(cf.Value, &u); err != nil || u.Login == "" {
			return nil
		}
		return &u
	}
	return nil
}

// ParentID returns the readable id of the parent issue, or "".
func (i Issue) ParentID() string {
	if i.Parent == nil || len(i.Parent.Issues) == 0 {
		return ""
	}
	return i.Parent.Issues[0].IDReadable
}

// UpdaterLogin returns the login of the last updater, or "".
func (i Issue) UpdaterLogin() string {
	if i.Updater == nil {
		return ""
	}
	return i.Updater.Login
}

// Comment represents an issue comment
type Comment struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Created int64  `json:"created"`
	Author  *User  `json:"author,omitempty"`
}

// AuthorLogin returns the comment author's login, or "".
func (c Comment) AuthorLogin() string {
	if c.Author == nil {
		return ""
	}
	return c.Author.Login
}

// ActivityItem is one entry of an issue's activity stream
type ActivityItem struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Author    *User  `json:"author,omitempty"`
	Category  struct {
		ID string `json:"id"`
	} `json:"category"`
	Field *struct {
		Name string `json:"name"`
	} `json:"field,omitempty"`
	Added   ActivityValues `json:"added"`
	Removed ActivityValues `json:"removed"`
}

// AuthorLogin returns the activity author's login, or "".
func (a ActivityItem) AuthorLogin() string {
	if a.Author == nil {
		return ""
	}
	return a.Author.Login
}

// ActivityValue is one added or removed value. Only user values carry a Login.
type ActivityValue struct {
	ID    string `json:"id,omitempty"`
	Login string `json:"login,omitempty"`
	Name  string `json:"name,omitempty"`
	Text  string `json:"text,omitempty"`
}

// ActivityValues decodes the added/removed payload, which YouTrack sends as an
// array, a single object, a scalar or null depending on the category.
type ActivityValues []ActivityValue

// UnmarshalJSON implements json.Unmarshaler
func (v *ActivityValues) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = nil
		return nil
	}

	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		values := make(ActivityValues, 0, len(raw))
		for _, r := range raw {
			if val, ok := decodeActivityValue(r); ok {
				values = append(values, val)
			}
		}
		*v = values
	default:
		if val, ok := decodeActivityValue(data); ok {
			*v = ActivityValues{val}
		} else {
			*v = nil
		}
	}
	return nil
}

func decodeActivityValue(data json.RawMessage) (ActivityValue, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ActivityValue{}, false
	}
	if data[0] == '{' {
		var val ActivityValue
		if err := json.Unmarshal(data, &val); err != nil {
			return ActivityValue{}, false
		}
		return val, true
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return ActivityValue{Text: s}, true
	}
	return ActivityValue{Text: string(data)}, true
}

// HasLogin reports whether any value refers to the given user login.
func (v ActivityValues) HasLogin(login string) bool {
	for _, val := range v {
		if val.Login != "" && val.Login == login {
			return true
		}
	}
	return false
}

// WorkItem is a time-tracking record. Date is epoch milliseconds of the
// calendar day (time of day is not significant).
type WorkItem struct {
	ID       string `json:"id"`
	Date     int64  `json:"date"`
	Duration struct {
		Minutes int `json:"minutes"`
	} `json:"duration"`
	Author *User     `json:"author,omitempty"`
	Text   string    `json:"text,omitempty"`
	Issue  *IssueRef `json:"issue,omitempty"`
}

// AuthorLogin returns the work item author's login, or "".
func (w WorkItem) AuthorLogin() string {
	if w.Author == nil {
		return ""
	}
	return w.Author.Login
}
