package bwt

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"bwt-monservice/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// labels of the spans inside div.informations on the device page
const (
	serialNumberLabel = "N° série"
	serviceDateLabel  = "Mise en service le"
)

func (c *Client) fetchHtmlData(ctx context.Context) (Record, error) {
	ctx, span := tracer.Start(ctx, "client:fetchHtmlData")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParam("receiptLineKey", c.receiptLineKey).
		Get(devicePath)
	if err != nil {
		return nil, transportError(ctx, "fetch device page", err)
	}
	c.tel.ReportDebug("device page response", res.StatusCode())

	err = checkStatus(res)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		err = fmt.Errorf("%w: parse device page: %w", ErrDataNotFound, err)
		c.tel.ReportBroken(report_client_fetch_html, err)
		return nil, err
	}

	record := parseDevicePage(doc)
	c.tel.ReportDebug("device page extracted", record)
	return record, nil
}

// parseDevicePage extracts the device name, serial number and service date.
// Missing elements leave the corresponding keys out.
func parseDevicePage(doc *goquery.Document) Record {
	record := Record{}

	title := doc.Find("h1.page-title").First()
	if title.Length() > 0 {
		record[KeyDeviceName] = htmlutil.CleanText(title.Text())
	}

	doc.Find("div.informations").First().Find("span").Each(func(_ int, s *goquery.Selection) {
		text := htmlutil.CleanText(s.Text())
		switch {
		case strings.Contains(text, serialNumberLabel):
			// "N° série : 08K8-FJKL"
			idx := strings.LastIndex(text, ":")
			record[KeySerialNumber] = strings.TrimSpace(text[idx+1:])
		case strings.Contains(text, serviceDateLabel):
			// "Mise en service le 04-06-2024"
			idx := strings.LastIndex(text, "le")
			record[KeyServiceDate] = convertServiceDate(strings.TrimSpace(text[idx+len("le"):]))
		}
	})

	return record
}

// convertServiceDate turns DD-MM-YYYY into YYYY-MM-DD, anything that does not
// look like three dash separated numbers is returned unchanged.
func convertServiceDate(raw string) string {
	parts := strings.Split(raw, "-")
	if len(parts) != 3 {
		return raw
	}
	for _, p := range parts {
		if p == "" || strings.IndexFunc(p, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return raw
		}
	}
	day, month, year := parts[0], parts[1], parts[2]
	return fmt.Sprintf("%s-%s-%s", year, month, day)
}
