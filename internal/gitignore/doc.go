// Package gitignore matches paths against .gitignore rules.
//
// Rules are translated to doublestar globs: an unanchored rule such as
// "*.log" matches at any depth, a rule containing a slash is anchored to the
// directory of its .gitignore, a trailing slash restricts the rule to
// directories (and everything below them), and "!" re-includes. The last
// matching rule wins.
//
//	m := gitignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	m.AddFromFile("/repo/src/.gitignore", "src")
//
//	if m.Match("src/gen/out.log", false) {
//	    // ignored
//	}
package gitignore
