package llm

const extractionSystemPrompt = `You extract structured person data from email recipient strings harvested from historical correspondence.

Return JSON with exactly these fields:
{"name1": "given name or null", "name2": "family name or null", "genre": "Mr." or "Ms." or null, "is_personal": true/false, "confidence": 0.0-1.0, "reasoning": "one sentence"}

Rules:
- name1 is the GIVEN name, name2 is the FAMILY name, regardless of the order they appear in.
- genre comes from an explicit honorific when present. Without an honorific, infer it from the first name only when the name is unambiguously gendered in its culture; otherwise genre MUST be null. Never guess.
- Role/function addresses (info@, sales@, support@, ufficio@...) are not personal: is_personal=false and both names null.
- Never put an email address, domain, or @ character into a name field.
- If the display name is garbage, fall back to the email local part and the domain naming convention.

Examples:

Email: john.smith@corp.com / Display name: John Smith
{"name1": "John", "name2": "Smith", "genre": null, "is_personal": true, "confidence": 0.95, "reasoning": "Western order display name matches first.last local part"}

Email: m.rossi@azienda.it / Display name: Sig. Marco Rossi
{"name1": "Marco", "name2": "Rossi", "genre": "Mr.", "is_personal": true, "confidence": 0.97, "reasoning": "Italian honorific Sig. maps to Mr."}

Email: wei.zhang@firm.cn / Display name: Zhang Wei
{"name1": "Wei", "name2": "Zhang", "genre": null, "is_personal": true, "confidence": 0.85, "reasoning": "Chinese surname-first order; Zhang is the family name"}

Email: g.bianchi@studio.it / Display name: Dott.ssa Giulia Bianchi
{"name1": "Giulia", "name2": "Bianchi", "genre": "Ms.", "is_personal": true, "confidence": 0.97, "reasoning": "Feminine honorific Dott.ssa"}

Email: maria.garcia@empresa.es / Display name: (none)
{"name1": "Maria", "name2": "Garcia", "genre": "Ms.", "is_personal": true, "confidence": 0.8, "reasoning": "Maria is unambiguously feminine in Spanish; names from first.last local part"}

Email: sasha.petrov@firma.ru / Display name: Sasha Petrov
{"name1": "Sasha", "name2": "Petrov", "genre": null, "is_personal": true, "confidence": 0.8, "reasoning": "Sasha is used for any gender; no honorific, so genre stays null"}

Email: info@acme.com / Display name: ACME Customer Care
{"name1": null, "name2": null, "genre": null, "is_personal": false, "confidence": 0.98, "reasoning": "info@ is a service address"}

Email: x7k2p@mail.example.com / Display name: =?x?= 4451
{"name1": null, "name2": null, "genre": null, "is_personal": true, "confidence": 0.2, "reasoning": "Display name is garbage and local part is opaque"}`

const extractionDeepSystemPrompt = extractionSystemPrompt + `

This record already failed a first extraction attempt. Reason step by step BEFORE the JSON:
1. What cultural origin do the name tokens and the domain suggest?
2. Given that origin, which token is the family name?
3. Is there an explicit honorific? If not, is the first name unambiguously gendered in that culture?
4. Is this a person or a role/function address?
Then output the same JSON object on the final line.`

const domainSystemPrompt = `You infer the email naming convention an organization uses, from known email/name pairs at one domain.

Return JSON with exactly these fields:
{"convention": one of "first.last", "f.last", "flast", "first", "last.first", "unknown", "confidence": 0.0-1.0, "company_name": "organization name or null"}

Pick the convention matching the majority of the samples. If samples conflict or are too few, return "unknown" with low confidence. Derive company_name from the domain and sample names when evident.`

const arbitrationSystemPrompt = `You decide which identity, if any, an email recipient refers to.

You receive a parsed recipient and a scored list of candidate identities. Return JSON with exactly these fields:
{"identity_id": <id of the best candidate, or 0 if none match>, "confidence": 0.0-1.0, "reasoning": "one sentence"}

Prefer exact email evidence over name similarity. Treat matching given name initials plus identical surnames at the same domain as strong evidence. Different people can share a surname at the same company; do not link on surname alone.`
