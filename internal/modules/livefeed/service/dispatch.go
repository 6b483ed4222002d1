package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"trade_console/internal/models"
	"trade_console/pkg/logger"

	"github.com/bytedance/sonic"
)

type frameHandler func(c *Client, f *models.Frame)

var frameHandlers = map[string]frameHandler{
	models.FrameBotStatus:       (*Client).handleBotStatus,
	models.FramePositionsUpdate: (*Client).handlePositions,
	models.FrameMarketData:      (*Client).handleMarketData,
	models.FrameTradeExecuted:   (*Client).handleTradeExecuted,
	models.FrameError:           (*Client).handleServerError,
}

// onMessageLocked: битый кадр логируем и выкидываем, состояние не трогаем.
func (c *Client) onMessageLocked(raw []byte) {
	var f models.Frame
	if err := sonic.Unmarshal(raw, &f); err != nil {
		logger.Error("[FEED] bad frame: %v", err)
		return
	}

	h, ok := frameHandlers[f.Type]
	if !ok {
		logger.Info("[FEED] unknown message type: %q", f.Type)
		return
	}
	h(c, &f)
}

func (c *Client) handleBotStatus(f *models.Frame) {
	var st models.BotStatus
	if err := decodeData(f.Data, &st); err != nil {
		logger.Error("[FEED] bot_status payload: %v", err)
		return
	}
	c.store.setBotStatus(st)
}

func (c *Client) handlePositions(f *models.Frame) {
	var ps []models.Position
	if err := decodeData(f.Data, &ps); err != nil {
		logger.Error("[FEED] positions_update payload: %v", err)
		return
	}
	c.store.setPositions(ps)
}

func (c *Client) handleMarketData(f *models.Frame) {
	if f.Symbol == "" {
		logger.Error("[FEED] market_data without symbol")
		return
	}
	payload := json.RawMessage("null")
	if len(f.Data) > 0 {
		payload = append(json.RawMessage(nil), f.Data...)
	}
	c.store.mergeMarketData(f.Symbol, payload)
}

func (c *Client) handleTradeExecuted(f *models.Frame) {
	var t models.TradeExecuted
	if err := decodeData(f.Data, &t); err != nil {
		logger.Error("[FEED] trade_executed payload: %v", err)
		return
	}
	c.notify(models.ToastSuccess, formatTradeExecuted(t), toastTrade)
}

func (c *Client) handleServerError(f *models.Frame) {
	msg := f.Message
	if msg == "" {
		var p models.ErrorPayload
		if err := decodeData(f.Data, &p); err == nil {
			msg = p.Message
		}
	}
	if msg == "" {
		msg = "Произошла ошибка"
	}
	c.notify(models.ToastDanger, msg, toastServerError)
}

func formatTradeExecuted(t models.TradeExecuted) string {
	return fmt.Sprintf("Сделка исполнена: %s %s %s", strings.ToUpper(t.Action), t.Volume.String(), t.Symbol)
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return sonic.Unmarshal(data, v)
}
