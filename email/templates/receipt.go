// Package templates provides email template components
package templates

import "fmt"

func GetParagraph(text string) string {
	return fmt.Sprintf(`<p style="font-family: Helvetica, sans-serif; font-size: 16px; font-weight: normal; margin: 0; margin-bottom: 16px;">%s</p>`, text)
}

type ReceiptEmailProps struct {
	Amount float64
	Biome  string
}

func GetReceiptEmailContent(props ReceiptEmailProps) string {
	content := GetParagraph("Thank you for your donation!") +
		GetParagraph(fmt.Sprintf("We received your contribution of <strong>R%.2f</strong>.", props.Amount))

	if props.Biome != "" {
		content += GetParagraph(fmt.Sprintf("Your donation supports the <strong>%s</strong> biome.", props.Biome))
	}

	content += GetParagraph("Every contribution counts. We'll keep you posted on the impact your support makes.")
	return content
}

type EmailLayoutProps struct {
	Content string
}

func GetEmailLayout(props EmailLayoutProps) string {
	return fmt.Sprintf(`<!doctype html>
<html>
  <body style="background-color: #f4f5f6; font-family: Helvetica, sans-serif; font-size: 16px; margin: 0; padding: 0;">
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" width="100%%" style="background-color: #f4f5f6;">
      <tr>
        <td>&nbsp;</td>
        <td style="max-width: 600px; margin: 0 auto; padding: 24px; display: block;">
          <div style="background: #ffffff; border-radius: 4px; padding: 24px;">
            %s
          </div>
        </td>
        <td>&nbsp;</td>
      </tr>
    </table>
  </body>
</html>`, props.Content)
}
