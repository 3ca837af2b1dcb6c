package mcpserver

// SearchSyntax describes how chart searches are matched, for LLM consumers
// composing find and search patterns.
const SearchSyntax = `# Atlas Search Syntax

Every chart has a name (its directory, e.g. ` + "`ops/deploy/`" + `) and a text: the
chart source followed by one ` + "`svg: ...`" + ` line per text element of each
drawing the chart links.

## Fields

- **find** filters chart names.
- **search** filters chart text. The single character ` + "`.`" + ` lists the charts
  that pass find, without snippets.

Both are regular expressions (RE2 syntax), always case-insensitive. A pattern
that does not compile matches nothing.

## Modes

| find | search | result |
|------|--------|--------|
| empty | empty | nothing, results cleared |
| set | empty or ` + "`.`" + ` | names only |
| any | ` + "`.`" + ` | names only |
| any | pattern | names with up to 3 matching lines each |

Snippets are whole lines: the text before the hit, the hit, and the rest of
the line. Lines are matched independently, so ` + "`^`" + ` and ` + "`$`" + ` anchor to line
boundaries.

## Links

- A chart named ` + "`ops/deploy/`" + ` lives at ` + "`/ops/deploy/`" + `.
- When search is set, results offer ` + "`/<search>/index.txt/editor`" + ` to start a
  new chart named after the term.
- A query is bookmarkable as a URL fragment: ` + "`#find=ops&search=deploy`" + `.

## Drawings

Save drawings with the ` + "`save_drawing`" + ` tool, then link them from the chart
source as ` + "`![caption](./name.svg)`" + ` so their text is searchable.
`
