package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"shelfledger/crypto"
	"shelfledger/native/market"
)

func parseBech32Address(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Array(), nil
}

func parseID(value string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return out, fmt.Errorf("invalid hex identity: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("identity must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func parseIDs(values []string) ([][32]byte, error) {
	out := make([][32]byte, 0, len(values))
	for _, v := range values {
		id, err := parseID(v)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func parseOrigin(value string) (market.Origin, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "native", "":
		return market.OriginNative, nil
	case "shopify":
		return market.OriginShopify, nil
	case "square":
		return market.OriginSquare, nil
	default:
		return 0, fmt.Errorf("unknown origin %q", value)
	}
}

func parsePlacementType(value string) (market.PlacementType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "digital_replica", "digitalreplica":
		return market.PlacementDigitalReplica, nil
	case "related_purchase", "relatedpurchase":
		return market.PlacementRelatedPurchase, nil
	case "targeted_placement", "targeted":
		return market.PlacementTargeted, nil
	default:
		return 0, fmt.Errorf("unknown placement type %q", value)
	}
}

func parseCategory(value string) (market.ProductCategory, error) {
	categories := map[string]market.ProductCategory{
		"clothing":    market.CategoryClothing,
		"electronics": market.CategoryElectronics,
		"books":       market.CategoryBooks,
		"home":        market.CategoryHome,
		"beauty":      market.CategoryBeauty,
		"toys":        market.CategoryToys,
		"sports":      market.CategorySports,
		"automotive":  market.CategoryAutomotive,
		"grocery":     market.CategoryGrocery,
		"beverage":    market.CategoryBeverage,
		"health":      market.CategoryHealth,
	}
	if category, ok := categories[strings.ToLower(strings.TrimSpace(value))]; ok {
		return category, nil
	}
	return 0, fmt.Errorf("unknown product category %q", value)
}

func parseOrderStatus(value string) (market.OrderStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pending":
		return market.OrderPending, nil
	case "placed":
		return market.OrderPlaced, nil
	case "confirmed":
		return market.OrderConfirmed, nil
	case "fulfilled":
		return market.OrderFulfilled, nil
	case "delivered":
		return market.OrderDelivered, nil
	case "completed":
		return market.OrderCompleted, nil
	case "cancelled":
		return market.OrderCancelled, nil
	default:
		return 0, fmt.Errorf("unknown order status %q", value)
	}
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func renderActor(addr [20]byte) string {
	a, err := crypto.NewAddress(addr[:])
	if err != nil {
		return ""
	}
	return a.String()
}

func renderID(id [32]byte) string {
	return hex.EncodeToString(id[:])
}

type slotJSON struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	Manager         string `json:"manager"`
	PlacementType   string `json:"placementType"`
	ProductCategory string `json:"productCategory"`
	Product         string `json:"product,omitempty"`
	IsActive        bool   `json:"isActive"`
}

func slotToJSON(s *market.PlacementSlot) *slotJSON {
	if s == nil {
		return nil
	}
	out := &slotJSON{
		ID:              renderID(s.ID),
		Owner:           renderActor(s.Owner),
		Manager:         renderActor(s.Manager),
		PlacementType:   s.PlacementType.String(),
		ProductCategory: s.ProductCategory.String(),
		IsActive:        s.IsActive,
	}
	if s.Occupied() {
		out.Product = renderID(s.Product)
	}
	return out
}

type listingJSON struct {
	ID              string `json:"id"`
	Origin          string `json:"origin"`
	Owner           string `json:"owner"`
	Manager         string `json:"manager"`
	PlacementType   string `json:"placementType"`
	ProductCategory string `json:"productCategory"`
	InStock         uint64 `json:"inStock"`
	Sold            uint64 `json:"sold"`
	Slot            string `json:"slot,omitempty"`
	IsActive        bool   `json:"isActive"`
	Price           string `json:"price,omitempty"`
	Escrow          string `json:"escrow,omitempty"`
	Collection      string `json:"collection,omitempty"`
	OrderManager    string `json:"orderManager"`
}

func listingToJSON(l *market.ProductListing) *listingJSON {
	if l == nil {
		return nil
	}
	out := &listingJSON{
		ID:              renderID(l.ID),
		Origin:          l.Origin.String(),
		Owner:           renderActor(l.Owner),
		Manager:         renderActor(l.Manager),
		PlacementType:   l.PlacementType.String(),
		ProductCategory: l.ProductCategory.String(),
		InStock:         l.InStock,
		Sold:            l.Sold,
		IsActive:        l.IsActive,
		OrderManager:    l.OrderManager.String(),
	}
	if l.Slot != ([32]byte{}) {
		out.Slot = renderID(l.Slot)
	}
	if l.HasPrice() {
		out.Price = l.Price.String()
	}
	if l.Stocked() {
		out.Escrow = renderID(l.Escrow)
	}
	if l.Collection != ([32]byte{}) {
		out.Collection = renderID(l.Collection)
	}
	return out
}

type oracleJSON struct {
	Asset       string `json:"asset"`
	OrderStatus string `json:"orderStatus"`
	Validation  struct {
		Create   string `json:"create"`
		Transfer string `json:"transfer"`
		Burn     string `json:"burn"`
		Update   string `json:"update"`
	} `json:"validation"`
}

func oracleToJSON(o *market.OrderOracle) *oracleJSON {
	if o == nil {
		return nil
	}
	out := &oracleJSON{
		Asset:       renderID(o.Asset),
		OrderStatus: o.OrderStatus.String(),
	}
	out.Validation.Create = o.Validation.Create.String()
	out.Validation.Transfer = o.Validation.Transfer.String()
	out.Validation.Burn = o.Validation.Burn.String()
	out.Validation.Update = o.Validation.Update.String()
	return out
}

type slotRegisterParams struct {
	Owner           string `json:"owner"`
	ID              string `json:"id"`
	PlacementType   string `json:"placementType"`
	ProductCategory string `json:"productCategory"`
	Manager         string `json:"manager"`
}

func (s *Server) handleRegisterSlot(w http.ResponseWriter, req *RPCRequest) {
	var params slotRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	manager, err := parseBech32Address(params.Manager)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	placement, err := parsePlacementType(params.PlacementType)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	category, err := parseCategory(params.ProductCategory)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	slot, err := s.node.RegisterSlot(owner, id, placement, category, manager)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, slotToJSON(slot))
}

func (s *Server) handleUpdateSlot(w http.ResponseWriter, req *RPCRequest) {
	var params slotRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	manager, err := parseBech32Address(params.Manager)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	placement, err := parsePlacementType(params.PlacementType)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	category, err := parseCategory(params.ProductCategory)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.UpdateSlot(caller, id, placement, category, manager); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type activationParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
}

func (s *Server) handleSlotActivation(w http.ResponseWriter, req *RPCRequest, active bool) {
	var params activationParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if active {
		err = s.node.ActivateSlot(caller, id)
	} else {
		err = s.node.DeactivateSlot(caller, id)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type listingRegisterParams struct {
	Owner           string `json:"owner"`
	ID              string `json:"id"`
	Origin          string `json:"origin"`
	PlacementType   string `json:"placementType"`
	ProductCategory string `json:"productCategory"`
	Manager         string `json:"manager"`
	OrderManager    string `json:"orderManager"`
}

func (s *Server) handleRegisterListing(w http.ResponseWriter, req *RPCRequest) {
	var params listingRegisterParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	manager, err := parseBech32Address(params.Manager)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	origin, err := parseOrigin(params.Origin)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	orderManager, err := parseOrigin(params.OrderManager)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	placement, err := parsePlacementType(params.PlacementType)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	category, err := parseCategory(params.ProductCategory)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.RegisterListing(owner, id, origin, placement, category, manager, orderManager)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

type listingUpdateParams struct {
	Caller          string `json:"caller"`
	ID              string `json:"id"`
	PlacementType   string `json:"placementType"`
	ProductCategory string `json:"productCategory"`
	Manager         string `json:"manager"`
	Price           string `json:"price,omitempty"`
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, req *RPCRequest) {
	var params listingUpdateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	manager, err := parseBech32Address(params.Manager)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	placement, err := parsePlacementType(params.PlacementType)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	category, err := parseCategory(params.ProductCategory)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	var price *big.Int
	if strings.TrimSpace(params.Price) != "" {
		price, err = parsePositiveBigInt(params.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	if err := s.node.UpdateListing(caller, id, placement, category, manager, price); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleListingActivation(w http.ResponseWriter, req *RPCRequest, active bool) {
	var params activationParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if active {
		err = s.node.ActivateListing(caller, id)
	} else {
		err = s.node.DeactivateListing(caller, id)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type placeProductsParams struct {
	Owner      string   `json:"owner"`
	Listing    string   `json:"listing"`
	Slot       string   `json:"slot"`
	Collection string   `json:"collection"`
	Assets     []string `json:"assets"`
	Price      string   `json:"price"`
}

type stockingReceiptJSON struct {
	Listing string   `json:"listing"`
	Slot    string   `json:"slot"`
	Escrow  string   `json:"escrow"`
	Stocked uint64   `json:"stocked"`
	Oracles []string `json:"oracles"`
}

func (s *Server) handlePlaceProducts(w http.ResponseWriter, req *RPCRequest) {
	var params placeProductsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listingID, err := parseID(params.Listing)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	slotID, err := parseID(params.Slot)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseID(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	assets, err := parseIDs(params.Assets)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parsePositiveBigInt(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	receipt, err := s.node.PlaceProducts(owner, listingID, slotID, collection, assets, price)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	oracles := make([]string, 0, len(receipt.Oracles))
	for _, o := range receipt.Oracles {
		oracles = append(oracles, renderID(o))
	}
	writeResult(w, req.ID, &stockingReceiptJSON{
		Listing: renderID(receipt.Listing),
		Slot:    renderID(receipt.Slot),
		Escrow:  renderID(receipt.Escrow),
		Stocked: receipt.Stocked,
		Oracles: oracles,
	})
}

type purchaseParams struct {
	Buyer    string `json:"buyer"`
	Listing  string `json:"listing"`
	Slot     string `json:"slot"`
	Asset    string `json:"asset"`
	Quantity uint64 `json:"quantity"`
}

func (s *Server) handleMakePurchase(w http.ResponseWriter, req *RPCRequest) {
	var params purchaseParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseBech32Address(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listingID, err := parseID(params.Listing)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	slotID, err := parseID(params.Slot)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MakePurchase(buyer, listingID, slotID, asset, params.Quantity); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type orderStatusParams struct {
	Caller  string `json:"caller"`
	Listing string `json:"listing"`
	Asset   string `json:"asset"`
	Status  string `json:"status"`
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, req *RPCRequest) {
	var params orderStatusParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listingID, err := parseID(params.Listing)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	status, err := parseOrderStatus(params.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.UpdateOrderStatus(caller, listingID, asset, status); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type orderActionParams struct {
	Caller  string `json:"caller"`
	Listing string `json:"listing"`
	Asset   string `json:"asset"`
}

func (s *Server) handleCompleteOrder(w http.ResponseWriter, req *RPCRequest) {
	var params orderActionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listingID, err := parseID(params.Listing)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payout, err := s.node.CompleteOrder(caller, listingID, asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"payout": payout.String()})
}

type removeProductsParams struct {
	Owner   string   `json:"owner"`
	Listing string   `json:"listing"`
	Slot    string   `json:"slot"`
	Escrow  string   `json:"escrow"`
	Assets  []string `json:"assets"`
}

type removalReceiptJSON struct {
	Removed       uint64 `json:"removed"`
	Swept         string `json:"swept"`
	ReserveRefund string `json:"reserveRefund"`
}

func (s *Server) handleRemoveProducts(w http.ResponseWriter, req *RPCRequest) {
	var params removeProductsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseBech32Address(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listingID, err := parseID(params.Listing)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	slotID, err := parseID(params.Slot)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	escrow, err := parseID(params.Escrow)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	assets, err := parseIDs(params.Assets)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	receipt, err := s.node.RemoveProducts(owner, listingID, slotID, escrow, assets)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &removalReceiptJSON{
		Removed:       receipt.Removed,
		Swept:         receipt.Swept.String(),
		ReserveRefund: receipt.ReserveRefund.String(),
	})
}

func (s *Server) handleCloseOracle(w http.ResponseWriter, req *RPCRequest) {
	var params orderActionParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listingID, err := parseID(params.Listing)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CloseOracle(caller, listingID, asset); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) handleGetSlot(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	slot, ok := s.node.Slot(id)
	if !ok {
		writeEngineError(w, req.ID, market.ErrSlotNotFound)
		return
	}
	writeResult(w, req.ID, slotToJSON(slot))
}

func (s *Server) handleGetListing(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, ok := s.node.Listing(id)
	if !ok {
		writeEngineError(w, req.ID, market.ErrListingNotFound)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

type assetParams struct {
	Asset string `json:"asset"`
}

func (s *Server) handleGetOracle(w http.ResponseWriter, req *RPCRequest) {
	var params assetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseID(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	oracle, ok := s.node.Oracle(asset)
	if !ok {
		writeEngineError(w, req.ID, market.ErrOracleNotFound)
		return
	}
	writeResult(w, req.ID, oracleToJSON(oracle))
}

type escrowParams struct {
	Escrow string `json:"escrow"`
}

func (s *Server) handleGetEscrowBalance(w http.ResponseWriter, req *RPCRequest) {
	var params escrowParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	escrow, err := parseID(params.Escrow)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.EscrowBalance(escrow)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": balance.String()})
}

type addressParams struct {
	Address string `json:"address"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": balance.String()})
}

type fundParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleFundAccount(w http.ResponseWriter, req *RPCRequest) {
	var params fundParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.Credit(addr, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}
