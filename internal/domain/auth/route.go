package auth

// Route is a navigable destination of the application.
type Route struct {
	Name         string `yaml:"name"`
	Path         string `yaml:"path"`
	Title        string `yaml:"title"`
	RequiresAuth bool   `yaml:"requiresAuth"`
}

// Well-known destinations consulted by the navigation guard.
const (
	LoginPath          = "/login"
	HomePath           = "/"
	ChangePasswordPath = "/change-password"
)
