package urls

// Project links for the Day Ahead Optimizer. Hints and help output point
// here; update them in one place when the documentation moves.

// Project is the Day Ahead Optimizer repository.
const Project = "https://github.com/corneel27/day-ahead"

// Documentation is the project README, which covers options.json and
// secrets.json.
const Documentation = Project + "#readme"

// Issues is where bugs in the webserver or its schema are reported.
const Issues = Project + "/issues"
