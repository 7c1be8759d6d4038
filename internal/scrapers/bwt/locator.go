package bwt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"bwt-monservice/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

const receiptLineKeyParam = "receiptLineKey="

// extractReceiptLineKey returns the value of the receiptLineKey query
// parameter in href, up to the next '&' or the end of the string.
func extractReceiptLineKey(href string) (string, bool) {
	_, after, found := strings.Cut(href, receiptLineKeyParam)
	if !found {
		return "", false
	}
	key, _, _ := strings.Cut(after, "&")
	return key, key != ""
}

// parseReceiptLineKey finds the first anchor on the dashboard pointing at a device.
func parseReceiptLineKey(ctx context.Context, doc *goquery.Document) (string, error) {
	anchors := htmlutil.GetAnchors(ctx, doc.Find("a[href]"))
	for _, a := range anchors {
		if !strings.Contains(a.Href, receiptLineKeyParam) {
			continue
		}
		key, ok := extractReceiptLineKey(a.Href)
		if !ok {
			return "", fmt.Errorf("%w: receipt line key not found in link %q", ErrDataNotFound, a.Href)
		}
		return key, nil
	}
	return "", fmt.Errorf("%w: no device found in dashboard", ErrDataNotFound)
}

func (c *Client) fetchDashboard(ctx context.Context) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(dashboardPath)
	if err != nil {
		return nil, transportError(ctx, "fetch dashboard", err)
	}
	err = checkStatus(res)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: parse dashboard: %w", ErrDataNotFound, err)
	}
	return doc, nil
}

// ReceiptLineKey returns the identifier of the device linked from the
// dashboard. It is fetched once and memoized for the life of the client.
func (c *Client) ReceiptLineKey(ctx context.Context) (string, error) {
	if c.receiptLineKey != "" {
		c.tel.ReportDebug("using cached receipt line key", c.receiptLineKey)
		return c.receiptLineKey, nil
	}

	ctx, span := tracer.Start(ctx, "client:ReceiptLineKey")
	defer span.End()

	if err := c.checkOpen(); err != nil {
		return "", err
	}
	if err := c.ensureAuthenticated(ctx); err != nil {
		return "", err
	}

	doc, err := c.fetchDashboard(ctx)
	if errors.Is(err, errSessionExpired) {
		c.expire(report_client_receipt_line_key, err)
		if err := c.ensureAuthenticated(ctx); err != nil {
			return "", err
		}
		doc, err = c.fetchDashboard(ctx)
		if errors.Is(err, errSessionExpired) {
			err = fmt.Errorf("%w: fetch dashboard after re-authentication: %v", ErrConnection, err)
		}
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch dashboard")
		c.tel.ReportWarning(report_client_receipt_line_key, err)
		return "", err
	}

	key, err := parseReceiptLineKey(ctx, doc)
	if err != nil {
		span.SetStatus(codes.Error, "failed to find receipt line key")
		c.tel.ReportBroken(report_client_receipt_line_key, err)
		return "", err
	}

	c.receiptLineKey = key
	c.tel.ReportDebug("receipt line key extracted and cached", key)
	return key, nil
}
