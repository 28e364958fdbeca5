package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"

	"storygen/internal/analyze"
)

var md = goldmark.New()

// HTML renders the Markdown report as an HTML preview page.
func HTML(result *analyze.Result) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(result)), &buf); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>User Stories for %s</title>
</head>
<body>
%s</body>
</html>
`, result.Repository.FullName, buf.String()), nil
}
