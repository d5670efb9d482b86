package config

const defaultExtractionPrompt = `You convert patent search requests into a JSON object with exactly these keys:
  "ipc_codes": array of IPC classification code prefixes (e.g. "H01M", "G06F16"),
  "assignees": array of company or applicant names as they would appear on the patent,
  "publication_from": earliest publication date as YYYY-MM-DD.
Use [] for a dimension the request does not constrain.
If the request names no start date, use {default_from}.
Reply with the JSON object only, without explanations or Markdown.`

const defaultProposalPrompt = `Restate the user's patent search request in one short sentence, naming the technology,
the companies and the start date you understood, and end with a yes/no question asking whether this is correct.
Reply in the user's language.`

const defaultSummaryPrompt = `Summarize the following patent abstract in at most three sentences for a technical reader.
Reply in the language of the abstract.`
