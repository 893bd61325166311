package mcpserver

// DocumentFormatContract describes the vault document formats that LLM
// consumers should follow when writing content or configuration.
const DocumentFormatContract = `# Headless Document Format Contract

The vault holds two kinds of documents. Markdown files (` + "`" + `.md` + "`" + `) each describe
one content object. YAML files (` + "`" + `.yaml` + "`" + `) hold site configuration: displays,
redirects and collection views.

## Content documents

` + "```" + `markdown
---
type: node                 # OPTIONAL – object category, default "node"
bundle: article            # OPTIONAL – variant within the category, default = type
id: "42"                   # OPTIONAL – default is the file name without .md
langcode: en               # OPTIONAL – default is the site language
path: /news/launch         # OPTIONAL – URL alias
published: true            # OPTIONAL – unpublished objects need "view unpublished content"
translatable: true         # OPTIONAL
cache_tags: [campaign]     # OPTIONAL – extra invalidation tags
fields:                    # OPTIONAL – plain values, in display order
  subtitle: We have lift-off
  link: {uri: "entity:node/7", title: Contact}
references:                # OPTIONAL – "category/id" or a bare node id
  field_image: media/3
  field_related: [node/7, node/8]
---

# Launch day

Body text in standard Markdown. [[node/7]] links are references too.
` + "```" + `

Rules:

1. **Identity.** An object is identified by type and id. Translations are separate
   files with the same type and id and a different ` + "`" + `langcode` + "`" + `.
2. **Title** comes from the ` + "`" + `title` + "`" + ` key, else the first ` + "`" + `# heading` + "`" + `.
3. **Links** in ` + "`" + `fields` + "`" + ` use ` + "`" + `uri` + "`" + `: ` + "`" + `entity:<type>/<id>` + "`" + `, ` + "`" + `internal:/<path>` + "`" + `
   or ` + "`" + `route:<front>` + "`" + `. They are rewritten to site URLs in responses.
4. ` + "`" + `type: view` + "`" + ` is reserved; collection views live in config documents.
5. **Encoding** is UTF-8 with a trailing newline; paths use forward slashes.

## Config documents

` + "```" + `yaml
displays:
  - type: node
    bundle: page
    view_mode: default
    hidden: [field_internal]
    components:
      field_related: {type: entity_reference_entity_view, view_mode: teaser}
redirects:
  - source: /old-path
    target: /news/launch
    status: 301            # OPTIONAL – default 301
views:
  - id: news
    path: /news
    displays:
      default:
        title: News
        query: {category: node, variant: article, sort: changed, order: desc, limit: 10}
        row: {view_mode: teaser}
` + "```" + `

Invalid YAML in a config document is rejected.

## Writing

Use ` + "`" + `write_document` + "`" + ` with the ` + "`" + `checksum` + "`" + ` returned by ` + "`" + `read_document` + "`" + ` when
replacing a document. Every write is indexed immediately and cached responses that
depend on it are dropped.
`
