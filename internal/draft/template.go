package draft

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/cockroachdb/errors"

	"socialia/internal/platform"
	"socialia/pkg/fileutil"
)

var initTemplate = template.Must(template.New("drafts").Parse(`#+TITLE: Social Media Drafts
#+AUTHOR: {{.Author}}
#+STARTUP: showall

* Drafts [0/2]

** TODO [#A] Example Draft 1
   SCHEDULED: <{{.First}} 10:00>
   :PROPERTIES:
   :PLATFORM: {{.Platform}}
   :ID: draft-001
   :END:

Your first draft content goes here.

Write multiple lines if needed.

** TODO [#B] Example Draft 2
   SCHEDULED: <{{.Second}} 10:00>
   :PROPERTIES:
   :PLATFORM: {{.Platform}}
   :ID: draft-002
   :END:

Second draft content.

* Archive
# Move DONE items here after posting
`))

// ErrExists is returned by Init when the target exists and force is false.
var ErrExists = errors.New("file already exists")

// Init writes a template draft file with two examples scheduled for the next two days.
func Init(path, platformName string, force bool, now time.Time) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.WithHint(errors.Wrapf(ErrExists, "%s", path), "use --force to overwrite")
	}
	platformName = platform.Normalize(platformName)
	if platformName == "" {
		platformName = DefaultPlatform
	}
	var b strings.Builder
	err := initTemplate.Execute(&b, map[string]string{
		"Author":   author(),
		"Platform": platformName,
		"First":    now.AddDate(0, 0, 1).Format("2006-01-02 Mon"),
		"Second":   now.AddDate(0, 0, 2).Format("2006-01-02 Mon"),
	})
	if err != nil {
		return errors.Wrap(err, "render template")
	}
	return fileutil.WriteFile(path, []byte(b.String()), 0o644)
}

func author() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return filepath.Base(u.Username)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Base(home)
	}
	return "me"
}
