package controllers

import (
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/domain/services/container"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// ContactListController 处理联系人列表相关的请求
type ContactListController struct {
	baseController
}

// NewContactListController 创建一个新的联系人列表控制器
func NewContactListController(ctx *gin.Context, container *container.ServiceContainer) *ContactListController {
	return &ContactListController{baseController{Ctx: ctx, Container: container}}
}

// HandleContactListFunc 返回一个处理联系人列表请求的Gin处理函数
func HandleContactListFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewContactListController(ctx, container)

		switch method {
		case "getContactLists":
			controller.GetContactLists()
		case "getContactList":
			controller.GetContactList()
		case "createContactList":
			controller.CreateContactList()
		case "updateContactList":
			controller.UpdateContactList()
		case "deleteContactList":
			controller.DeleteContactList()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

func (c *ContactListController) contactListService() services.InterfaceContactListService {
	return c.service("contact_list").(services.InterfaceContactListService)
}

// 1. GetContactLists 获取联系人列表
// @Summary 获取联系人列表
// @Tags ContactList
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认为1"
// @Param page_size query int false "每页条数，默认为20"
// @Param property_id query int false "物业ID"
// @Param type query string false "emergency, escalation, client, vendor, internal"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /contact-lists [get]
func (c *ContactListController) GetContactLists() {
	var q services.ContactListQuery
	if !c.bindQuery(&q) {
		return
	}
	q.Normalize()

	lists, total, err := c.contactListService().ListContactLists(c.Ctx.Request.Context(), q)
	if err != nil {
		c.fail(err)
		return
	}
	response.Page(c.Ctx, lists, total, q.Page, q.PageSize)
}

// 2. GetContactList 获取联系人列表详情
// @Summary 获取联系人列表详情
// @Tags ContactList
// @Produce json
// @Security BearerAuth
// @Param id path int true "联系人列表ID"
// @Success 200 {object} response.Response{data=models.ContactList}
// @Failure 404 {object} ErrorResponse
// @Router /contact-lists/{id} [get]
func (c *ContactListController) GetContactList() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	list, err := c.contactListService().GetContactList(c.Ctx.Request.Context(), id)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, list)
}

// 3. CreateContactList 创建联系人列表
// @Summary 创建联系人列表
// @Description 每个联系人需要姓名以及电话或邮箱
// @Tags ContactList
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param list body services.ContactListInput true "联系人列表"
// @Success 201 {object} response.Response{data=models.ContactList}
// @Failure 400 {object} ErrorResponse
// @Router /contact-lists [post]
func (c *ContactListController) CreateContactList() {
	var in services.ContactListInput
	if !c.bindJSON(&in) {
		return
	}
	list, err := c.contactListService().CreateContactList(c.Ctx.Request.Context(), c.actor(), in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Created(c.Ctx, list)
}

// 4. UpdateContactList 更新联系人列表
// @Summary 更新联系人列表
// @Tags ContactList
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "联系人列表ID"
// @Param list body services.ContactListInput true "联系人列表"
// @Success 200 {object} response.Response{data=models.ContactList}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /contact-lists/{id} [put]
func (c *ContactListController) UpdateContactList() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	var in services.ContactListInput
	if !c.bindJSON(&in) {
		return
	}
	list, err := c.contactListService().UpdateContactList(c.Ctx.Request.Context(), c.actor(), id, in)
	if err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, list)
}

// 5. DeleteContactList 删除联系人列表
// @Summary 删除联系人列表
// @Tags ContactList
// @Produce json
// @Security BearerAuth
// @Param id path int true "联系人列表ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} ErrorResponse
// @Router /contact-lists/{id} [delete]
func (c *ContactListController) DeleteContactList() {
	id, ok := c.pathID("id")
	if !ok {
		return
	}
	if err := c.contactListService().DeleteContactList(c.Ctx.Request.Context(), c.actor(), id); err != nil {
		c.fail(err)
		return
	}
	response.Success(c.Ctx, gin.H{"id": id})
}
