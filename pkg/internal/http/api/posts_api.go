package api

import (
	"strings"

	"github.com/akina-dev/boorud/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

func listPosts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)

	terms := lo.Filter(strings.FieldsFunc(c.Query("tags"), func(r rune) bool {
		return r == ',' || r == ' '
	}), func(item string, _ int) bool {
		return item != ""
	})

	query, err := services.ParseQuery(terms)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	store := Store.AllBoards()
	if alias := c.Query("board"); alias != "" {
		src, ok := services.SourceByID(alias)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no such board alias")
		}
		if store, err = Store.WithBoard(src.Host, src.ID); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
	}

	posts, err := store.QueryByTags(c.UserContext(), query.Tags, limit, &query)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"count": len(posts),
		"data":  posts,
	})
}

func listBoards(c *fiber.Ctx) error {
	boards, err := Store.ListBoards(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(boards)
}
