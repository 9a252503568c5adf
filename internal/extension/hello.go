package extension

import (
	"fmt"
	"net/http"

	"github.com/roach88/shelf/internal/auth"
	"github.com/roach88/shelf/internal/store"
)

// Builtins returns every module compiled into the binary.
func Builtins() []Module {
	return []Module{Hello()}
}

// Hello is a sample module exercising the extension context.
func Hello() Module {
	return Module{
		Name: "hello",
		Routes: []Route{
			{Method: http.MethodGet, Path: "/hello", Handler: helloGreeting},
			{Method: http.MethodGet, Path: "/users", Handler: helloUsers},
			{Method: http.MethodGet, Path: "/tables", Handler: helloTables},
			{Method: http.MethodGet, Path: "/hello/private", RequiresAuth: true, Handler: helloPrivate},
		},
	}
}

func helloGreeting(c *Context) {
	if c.User != nil {
		c.Text(http.StatusOK, fmt.Sprintf("Hello %s!", c.User.Username))
		return
	}
	c.Text(http.StatusOK, "Hello World!")
}

func helloUsers(c *Context) {
	users, err := c.Users(c.R.Context())
	if err != nil {
		c.Error("Error fetching users", err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Users []store.User `json:"users"`
	}{users})
}

func helloTables(c *Context) {
	tables, err := c.Tables(c.R.Context())
	if err != nil {
		c.Error("Error fetching tables", err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

func helloPrivate(c *Context) {
	users, err := c.Users(c.R.Context())
	if err != nil {
		c.Error("Error fetching users", err)
		return
	}
	c.JSON(http.StatusOK, struct {
		Message     string         `json:"message"`
		CurrentUser *auth.Identity `json:"currentUser"`
	}{
		Message:     fmt.Sprintf("Hello %s! There are %d users registered.", c.User.Username, len(users)),
		CurrentUser: c.User,
	})
}
