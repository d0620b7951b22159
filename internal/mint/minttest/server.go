package minttest

import (
	"errors"
	"net"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/congo-pay/cashubench/internal/cashu"
	"github.com/congo-pay/cashubench/internal/mint"
)

const requestIDHeader = "X-Request-ID"

// NewApp exposes m through the mint REST API.
func NewApp(m *Mint) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "minttest",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(requestID())

	h := &handler{m: m}
	v1 := app.Group("/v1")
	v1.Get("/keysets", h.keysets)
	v1.Get("/keys/:id", h.keys)
	v1.Post("/mint/quote/bolt11", h.createQuote)
	v1.Get("/mint/quote/bolt11/:quote", h.quoteState)
	v1.Post("/mint/bolt11", h.mintTokens)
	v1.Post("/swap", h.swap)
	return app
}

// Serve starts NewApp(m) on a loopback port. It returns the base URL and a
// function that stops the server.
func Serve(m *Mint) (string, func() error, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	app := NewApp(m)
	go func() {
		_ = app.Listener(ln)
	}()
	return "http://" + ln.Addr().String(), app.Shutdown, nil
}

type handler struct {
	m *Mint
}

func (h *handler) keysets(c *fiber.Ctx) error {
	resp, err := h.m.Keysets(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (h *handler) keys(c *fiber.Ctx) error {
	resp, err := h.m.Keys(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (h *handler) createQuote(c *fiber.Ctx) error {
	var req cashu.PostMintQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.m.CreateMintQuote(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (h *handler) quoteState(c *fiber.Ctx) error {
	resp, err := h.m.MintQuote(c.UserContext(), c.Params("quote"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (h *handler) mintTokens(c *fiber.Ctx) error {
	var req cashu.PostMintRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.m.Mint(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (h *handler) swap(c *fiber.Ctx) error {
	var req cashu.PostSwapRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.m.Swap(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func errorHandler(c *fiber.Ctx, err error) error {
	var mintErr *mint.Error
	if errors.As(err, &mintErr) {
		return c.Status(mintErr.Status).JSON(cashu.ErrorResponse{Detail: mintErr.Detail, Code: mintErr.Code})
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(cashu.ErrorResponse{Detail: fiberErr.Message})
	}
	return c.Status(http.StatusInternalServerError).JSON(cashu.ErrorResponse{Detail: err.Error()})
}

func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)
		return c.Next()
	}
}
