package bwt

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// scrape fetches both data sources and merges them, json fields win over html
// fields on collision.
func (c *Client) scrape(ctx context.Context) (Record, error) {
	ajaxData, err := c.fetchAjaxData(ctx)
	if err != nil {
		return nil, err
	}
	htmlData, err := c.fetchHtmlData(ctx)
	if err != nil {
		return nil, err
	}
	return merge(htmlData, ajaxData), nil
}

// GetDeviceData returns a fresh record of the device. A 401/403 from the
// portal triggers one re-authentication followed by one retry of the chart
// endpoint, whose data alone is then returned.
func (c *Client) GetDeviceData(ctx context.Context) (Record, error) {
	ctx, span := tracer.Start(ctx, "client:GetDeviceData")
	defer span.End()

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := c.ensureAuthenticated(ctx); err != nil {
		span.SetStatus(codes.Error, "failed to authenticate")
		return nil, err
	}
	if c.receiptLineKey == "" {
		if _, err := c.ReceiptLineKey(ctx); err != nil {
			span.SetStatus(codes.Error, "failed to resolve receipt line key")
			return nil, err
		}
	}

	record, err := c.scrape(ctx)
	if errors.Is(err, errSessionExpired) {
		c.expire(report_client_get_device_data, err)
		if err := c.ensureAuthenticated(ctx); err != nil {
			span.SetStatus(codes.Error, "failed to re-authenticate")
			return nil, err
		}
		record, err = c.fetchAjaxData(ctx)
		if errors.Is(err, errSessionExpired) {
			err = fmt.Errorf("%w: chart data after re-authentication: %v", ErrConnection, err)
		}
	}
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch device data")
		c.tel.ReportWarning(report_client_get_device_data, err)
		return nil, err
	}

	return record, nil
}
