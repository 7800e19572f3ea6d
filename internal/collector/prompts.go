package collector

import (
	"fmt"
	"strings"
)

// exchangePrompt asks the model to sweep the last 48 hours of news and
// discussion for one or more exchanges and emit categorized alerts as a
// JSON array.
func exchangePrompt(exchanges []string) string {
	return fmt.Sprintf(`Search for recent news and discussions about these cryptocurrency exchanges in the last 48 hours: %s.

Categorize each finding into one of these three categories:

1. **security_attack** - Cyber attacks and security breaches:
   - Exchange hacked, funds stolen
   - Wallet compromised (hot/cold)
   - DDoS attacks causing downtime
   - API vulnerabilities exploited
   - Smart contract bugs
   - Key phrases: hack, breach, exploit, stolen, drain, DDoS, vulnerability

2. **dispute_compliance** - Regulatory and compliance issues:
   - License revoked or suspended by regulators
   - Fined by regulatory authorities
   - User assets frozen or withdrawal blocked
   - AML/KYC violations
   - Money laundering allegations
   - Mass user complaints
   - Key phrases: regulatory, compliance, license, frozen, seized, AML, investigation, lawsuit

3. **operational_risk** - Operational and management risks:
   - CEO/founder arrested
   - Liquidity crisis or bank run
   - Extended system outage (>2 hours)
   - Bankruptcy or insolvency rumors
   - Massive layoffs
   - Key phrases: arrested, bankruptcy, liquidity, outage, downtime, insolvency

For each finding, return a JSON object with:
- exchange: which of the listed exchanges it concerns
- category: "security_attack", "dispute_compliance", or "operational_risk"
- subcategory: specific type (e.g., "fund_theft", "regulatory_action", "leadership_crisis")
- severity: "critical", "high", "medium", or "low"
- title: brief headline (max 50 chars)
- description: detailed description (100-200 chars)
- event_date: when the event occurred (YYYY-MM-DD format, or approximate)
- source: news source name
- url: source URL if available

Return as a JSON array. If no intelligence found, return empty array [].

Be objective and factual. Do not speculate or add information not in the sources.`, strings.Join(exchanges, ", "))
}

// exposurePrompt targets FinTelegram's exchange exposure reporting.
// Findings name the exchange via exchange_targeted.
func exposurePrompt() string {
	return `Search FinTelegram.com for recent articles exposing cryptocurrency exchange scams, hacks, or investigations.

FinTelegram focuses on:
- Exchange scams and frauds
- Regulatory warnings
- Security incidents
- Compliance violations

Categorize findings into:
- security_attack: if about hacks or security breaches
- dispute_compliance: if about regulatory issues or user complaints
- operational_risk: if about bankruptcy or leadership issues

Return as JSON array with fields: category, subcategory, severity, title, description, event_date, exchange_targeted, source, url.`
}
