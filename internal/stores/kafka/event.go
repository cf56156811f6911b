package kafka

import "time"

const TopicProductSold = `storefront.product-sold`

// ProductSoldEvent is emitted once per catalog entry flipped to sold, so
// downstream consumers (mailing list, bookkeeping) hear about each piece
// exactly as it leaves the shop.
type ProductSoldEvent struct {
	SessionID string    `json:"session_id"`
	ProductID string    `json:"product_id"`
	SoldAt    time.Time `json:"sold_at"`
}
