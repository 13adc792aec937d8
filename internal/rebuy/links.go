package rebuy

import (
	"net/url"
	"strings"

	"github.com/elocalpass/elocalpass-backend/internal/configurations"
	"github.com/elocalpass/elocalpass-backend/pkg/config"
	"github.com/elocalpass/elocalpass-backend/pkg/db/models"
)

const rebuyPath = "/rebuy"

// BuildURL links the customer back to the seller's purchase page, carrying
// the discount when the seller enabled one.
func BuildURL(portal config.PortalConfig, qr *models.QRCode, discount *configurations.RebuyDiscount) string {
	query := url.Values{}
	if qr.SellerID != nil && *qr.SellerID != "" {
		query.Set("seller", *qr.SellerID)
	}
	query.Set("qr", qr.Code)
	if discount != nil {
		query.Set("discount", discount.Value.String())
		query.Set("discountType", string(discount.Type))
	}
	return strings.TrimRight(portal.BaseURL, "/") + rebuyPath + "?" + query.Encode()
}
