// Copyright 2026 The Uitsmijter Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"html/template"
	"io"

	"github.com/uitsmijter/uitsmijter/internal/flow"
	"github.com/uitsmijter/uitsmijter/internal/tenant"
)

// LoginRenderer renders the interactive pages. Deployments replace the
// default with tenant-branded templates.
type LoginRenderer interface {
	RenderLogin(w io.Writer, prompt *flow.LoginPrompt, requestURI string) error
	RenderLoggedOut(w io.Writer, t *tenant.Tenant)
}

// loginPage is the data handed to the login template.
type loginPage struct {
	Tenant       string
	ClientID     string
	Location     string
	RequestURI   string
	ErrorMessage string
	Informations *tenant.Informations
}

const defaultLoginTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Sign in – {{.Tenant}}</title>
</head>
<body>
  <main>
    <h1>Sign in to {{.Tenant}}</h1>
    {{if .ErrorMessage}}<p class="error" role="alert">{{.ErrorMessage}}</p>{{end}}
    <form method="post" action="/login">
      <input type="hidden" name="location" value="{{.Location}}">
      <label>Username
        <input type="text" name="username" autocomplete="username" autofocus required>
      </label>
      <label>Password
        <input type="password" name="password" autocomplete="current-password" required>
      </label>
      <button type="submit">Sign in</button>
    </form>
    {{with .Informations}}
    <footer>
      {{if .Register}}<a href="{{.Register}}">Register</a>{{end}}
      {{if .Imprint}}<a href="{{.Imprint}}">Imprint</a>{{end}}
      {{if .Privacy}}<a href="{{.Privacy}}">Privacy</a>{{end}}
    </footer>
    {{end}}
  </main>
</body>
</html>
`

const defaultLoggedOutTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Signed out</title>
</head>
<body>
  <main>
    <h1>You have been signed out{{if .Tenant}} of {{.Tenant}}{{end}}.</h1>
  </main>
</body>
</html>
`

// TemplateRenderer renders the built-in html/template pages.
type TemplateRenderer struct {
	login     *template.Template
	loggedOut *template.Template
}

// NewTemplateRenderer parses the built-in templates.
func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{
		login:     template.Must(template.New("login").Parse(defaultLoginTemplate)),
		loggedOut: template.Must(template.New("logged_out").Parse(defaultLoggedOutTemplate)),
	}
}

// RenderLogin writes the login page.
func (t *TemplateRenderer) RenderLogin(w io.Writer, prompt *flow.LoginPrompt, requestURI string) error {
	page := loginPage{
		ClientID:     prompt.ClientID,
		Location:     prompt.Location,
		RequestURI:   requestURI,
		ErrorMessage: prompt.ErrorMessage,
	}
	if prompt.Tenant != nil {
		page.Tenant = prompt.Tenant.Name
		page.Informations = prompt.Tenant.Informations
	}
	return t.login.Execute(w, page)
}

// RenderLoggedOut writes the post-logout page.
func (t *TemplateRenderer) RenderLoggedOut(w io.Writer, ten *tenant.Tenant) {
	data := struct{ Tenant string }{}
	if ten != nil {
		data.Tenant = ten.Name
	}
	_ = t.loggedOut.Execute(w, data)
}
