package gate

import "strings"

// SetupTask is one idempotent preparation step run through the wrapped
// application's own management command before the real process starts.
type SetupTask struct {
	Name string
	// Args are passed to manage.py, e.g. {"collectstatic", "--noinput"}.
	Args []string
}

// Profile describes one deployment variant: which dependency to wait on,
// which subcommands bypass setup, and which setup tasks apply. The two
// variants are deliberately asymmetric and must stay that way — the product
// service has no schema migration step and therefore a shorter skip list.
type Profile struct {
	Name        string
	HostEnv     string
	PortEnv     string
	DefaultHost string
	DefaultPort int
	// SkipSubcommands lists manage.py subcommands that are diagnostic,
	// interactive, or migration-adjacent; setup tasks are skipped for them.
	SkipSubcommands []string
	SetupTasks      []SetupTask
}

// UserProfile is the relational variant: the user service waits on postgres
// and applies schema migrations after collecting static assets.
var UserProfile = Profile{
	Name:        "user-service",
	HostEnv:     "POSTGRES_HOST",
	PortEnv:     "POSTGRES_PORT",
	DefaultHost: "postgres-db",
	DefaultPort: 5432,
	SkipSubcommands: []string{
		"shell", "dbshell", "test", "createsuperuser", "makemigrations", "showmigrations",
	},
	SetupTasks: []SetupTask{
		{Name: "collectstatic", Args: []string{"collectstatic", "--noinput"}},
		{Name: "migrate", Args: []string{"migrate", "--noinput"}},
	},
}

// ProductProfile is the document variant: the product service waits on mongo
// and only collects static assets; the document store needs no migrations.
var ProductProfile = Profile{
	Name:        "product-service",
	HostEnv:     "MONGO_HOST",
	PortEnv:     "MONGO_PORT",
	DefaultHost: "mongo-db",
	DefaultPort: 27017,
	SkipSubcommands: []string{
		"shell", "test", "createsuperuser",
	},
	SetupTasks: []SetupTask{
		{Name: "collectstatic", Args: []string{"collectstatic", "--noinput"}},
	},
}

// ManageSubcommand extracts the manage.py subcommand from an argument vector.
// It recognizes "manage.py migrate", "./manage.py migrate" and
// "python manage.py migrate" forms. Returns "" when argv does not invoke
// manage.py or the subcommand is missing.
func ManageSubcommand(argv []string) string {
	for i, arg := range argv {
		if arg != "manage.py" && !strings.HasSuffix(arg, "/manage.py") {
			continue
		}
		if i+1 < len(argv) && !strings.HasPrefix(argv[i+1], "-") {
			return argv[i+1]
		}
		return ""
	}
	return ""
}

// shouldSkip reports whether sub is on the profile's skip list.
func (p *Profile) shouldSkip(sub string) bool {
	if sub == "" {
		return false
	}
	for _, skip := range p.SkipSubcommands {
		if sub == skip {
			return true
		}
	}
	return false
}
