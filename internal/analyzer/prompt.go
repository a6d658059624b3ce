package analyzer

// VisionPrompt is the fixed instruction sent ahead of the captured frames.
const VisionPrompt = `You are reviewing a sequence of screenshots taken a few seconds apart while a person searched for jobs.
Identify every job-search action the person took (applying, messaging a recruiter, scheduling or attending an
interview, following up, receiving an offer or rejection, ...).

You MUST return valid JSON.
Do NOT include markdown.
Do NOT include explanations.
Do NOT include code fences.

Return a JSON ARRAY.
Each element must match this schema:

{
  "company_name": string,
  "role": string,
  "recruiter_name": string | null,
  "action_type": string,
  "channel": string,
  "confidence": number | null,
  "notes": string | null
}

If multiple job-related actions occurred, return multiple objects.
If none occurred, return an empty array [].
`

// describePrompt asks a local vision model about a single frame; the
// descriptions are later turned into actions by a text-only pass.
const describePrompt = `Describe the job-search activity visible in this screenshot. Name the website or application,
any company names, job titles, recruiter names and what the person is doing (reading a posting, filling an
application, writing an email, in a video call, ...). Answer "nothing job related" if there is none.`

// describeSystemPrompt is the system prompt of the per-frame agent.
const describeSystemPrompt = "You are a visual analysis assistant specialized in reading screenshots of job-search activity."

// extractSystemPrompt is the system prompt of the consolidating agent.
const extractSystemPrompt = "You convert activity logs into structured job-search actions and answer with JSON only."
