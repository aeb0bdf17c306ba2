package triage

import (
	"fmt"
	"strings"

	"grievance/backend/internal/models"
)

func locationBlock(loc models.Location) string {
	field := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return NotSpecified
		}
		return strings.TrimSpace(v)
	}
	return fmt.Sprintf(`City: %s
State: %s
Area: %s
Place: %s
Pincode: %s
Specific Location: %s`,
		field(loc.City), field(loc.State), field(loc.Area),
		field(loc.Place), field(loc.Pincode), field(loc.SpecificLocation))
}

func structurePrompt(text string, loc models.Location) string {
	return fmt.Sprintf(`Convert this informal citizen grievance into a formal government complaint.
Use exactly these sections, each on its own line followed by its content:

Issue Summary:
Detailed Description:
Location:
Impact:
Urgency Indicators:
Expected Resolution:

Copy the location details below into the Location section as given.
Write "Not specified" for anything the citizen did not mention. Do not invent facts.

Location details:
%s

Grievance:
%s`, locationBlock(loc), text)
}

func classifyPrompt(text string) string {
	return fmt.Sprintf(`Classify the grievance into exactly ONE of these departments:

%s

Reply with the department name only, nothing else.

Grievance:
%s`, strings.Join(models.DepartmentNames(), "\n"), text)
}

func priorityPrompt(text string, loc models.Location) string {
	return fmt.Sprintf(`Rate the urgency of this grievance as exactly one word: high, medium, or low.
high: danger to life, health or safety, or an essential service is completely down.
medium: significant inconvenience that needs attention within days.
low: minor or cosmetic issue.

Location:
%s

Grievance:
%s`, locationBlock(loc), text)
}

func verifyPrompt(grievance, resolution string, loc models.Location) string {
	return fmt.Sprintf(`You audit closure notes written by government officers.
Approve the resolution only if it is specific: it must say what was done, where (matching the grievance location), and when.
Reject vague promises such as "we will look into it".

Grievance:
%s

Grievance location:
%s

Proposed resolution:
%s

Reply with a JSON object only:
{"approved": true or false, "reason": "one sentence"}`, grievance, locationBlock(loc), resolution)
}

func imagePrompt(structured string) string {
	return fmt.Sprintf(`Analyze the attached photo submitted with a citizen grievance.

Grievance:
%s

Reply with a JSON object only, using these keys:
{
  "description": "what the photo shows",
  "issue": "the civic problem visible, or none",
  "matches_grievance": true or false,
  "severity": "low" | "medium" | "high",
  "text_found": "any readable text, or empty",
  "safety_concern": "any hazard to people, or none"
}`, structured)
}
